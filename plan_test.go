package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDimensionExact(t *testing.T) {
	starts, sizes := splitDimension(4, 2)
	assert.Equal(t, []int{0, 2}, starts)
	assert.Equal(t, []int{2, 2}, sizes)
}

func TestSplitDimensionMergesShortRemainder(t *testing.T) {
	// blockSize 10: a trailing remainder < 10/4 = 2 pixels gets merged
	// into the previous block instead of forming its own tiny block.
	starts, sizes := splitDimension(21, 10)
	assert.Equal(t, []int{0, 10}, starts)
	assert.Equal(t, []int{10, 11}, sizes)
}

func TestSplitDimensionKeepsLargerRemainder(t *testing.T) {
	starts, sizes := splitDimension(25, 10)
	assert.Equal(t, []int{0, 10, 20}, starts)
	assert.Equal(t, []int{10, 10, 5}, sizes)
}

func TestPartitionRoundRobinCoversFlatList(t *testing.T) {
	flat := make([]ReadTask, 10)
	for i := range flat {
		flat[i] = ReadTask{Iid: InputId(i)}
	}
	parts := Partition(flat, 3)
	assert.Len(t, parts, 3)

	seen := make(map[InputId]bool)
	total := 0
	for w, p := range parts {
		total += len(p)
		for _, task := range p {
			assert.False(t, seen[task.Iid], "task must be assigned to exactly one worker")
			seen[task.Iid] = true
			assert.Equal(t, w, int(task.Iid)%3, "task must land on worker (index mod N)")
		}
	}
	assert.Equal(t, len(flat), total)
	assert.Len(t, seen, len(flat))
}

func TestBuildPlanRowMajorOrder(t *testing.T) {
	grid := flatGrid(4, 4, 1, 1, 0)
	infos := []ImageInfo{{ID: 0, Path: "a", Grid: grid, NumBands: 1}}
	plan := BuildPlan(grid, infos, []bool{false}, 2)

	as := assert.New(t)
	as.Len(plan.Entries, 4)
	var last OutputBlockId
	for i, e := range plan.Entries {
		if i > 0 {
			as.True(last.Less(e.Obid))
		}
		last = e.Obid
	}
}
