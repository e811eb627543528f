package inspect

import (
	"sort"

	"sqsinspect/internal/types"
)

// SortBySentTime orders msgs in place, newest first. Messages with the same
// send time keep their arrival order.
func SortBySentTime(msgs []types.NormalizedMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentTimeEpoch > msgs[j].SentTimeEpoch
	})
}
