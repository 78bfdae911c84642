package mosaic

import (
	"context"

	"github.com/tbonfort/gobs"
)

// ProbeAll implements C1: it opens every input, in parallel, and returns
// the frozen ImageInfo for each, indexed by its position (and hence
// priority) in paths. A missing or unreadable input is fatal per
// spec.md §4.1: the first MetadataError encountered aborts the job
// before any worker is spawned.
func ProbeAll(ctx context.Context, provider Provider, paths []string, parallelism int) ([]ImageInfo, error) {
	infos := make([]ImageInfo, len(paths))
	errs := make([]error, len(paths))

	pool := gobs.NewPool(parallelism)
	batch := pool.Batch()
	for i, path := range paths {
		i, path := i, path
		batch.Submit(func() error {
			info, err := provider.Probe(ctx, InputId(i), path)
			if err != nil {
				errs[i] = err
				return err
			}
			infos[i] = info
			return nil
		})
	}
	batch.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return infos, nil
}

// imageInfoCache is the frozen, read-only-after-construction slice the
// rest of the pipeline shares by reference (spec.md §3's ImageInfo
// cache lifecycle). No field is mutated after newImageInfoCache returns,
// so sharing it across goroutines needs no further synchronization.
type imageInfoCache struct {
	infos []ImageInfo
}

func newImageInfoCache(infos []ImageInfo) *imageInfoCache {
	return &imageInfoCache{infos: infos}
}

func (c *imageInfoCache) get(id InputId) ImageInfo {
	return c.infos[id]
}

func (c *imageInfoCache) len() int {
	return len(c.infos)
}
