package mosaic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults ok", func(o *Options) {}, false},
		{"zero workers", func(o *Options) { o.NumWorkers = 0 }, true},
		{"zero blocksize", func(o *Options) { o.BlockSize = 0 }, true},
		{"empty driver", func(o *Options) { o.Driver = "" }, true},
		{"conflicting proj", func(o *Options) { o.OutProjEPSG = 4326; o.OutProjWKTFile = "x.wkt" }, true},
		{"xres without yres", func(o *Options) { o.XRes = 1 }, true},
		{"negative xres", func(o *Options) { o.XRes, o.YRes = -1, -1 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := DefaultOptions()
			tc.mutate(&o)
			err := o.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadInputList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.txt")
	content := "a.tif\n# comment\n\nb.tif\n  c.tif  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadInputList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tif", "b.tif", "c.tif"}, got)
}

func TestReadInputListEmptyIsUsageError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("# only comments\n"), 0o644))

	_, err := ReadInputList(path)
	require.Error(t, err)
	var usageErr *UsageError
	assert.ErrorAs(t, err, &usageErr)
}
