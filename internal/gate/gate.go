// Package gate holds the skip/process decision for inbound objects.
package gate

import "fmt"

type Decision struct {
	Process    bool
	SkipReason string
}

// Decide is a pure function of the size hint and the configured threshold.
// A known size at or below the threshold is skipped. Unknown size always
// processes: silently skipping could leave an oversized document
// uncompressed forever, while a needless worker call is harmless.
func Decide(size *int64, threshold int64) Decision {
	if size == nil {
		return Decision{Process: true}
	}
	if *size <= threshold {
		return Decision{
			SkipReason: fmt.Sprintf("size %d <= threshold %d", *size, threshold),
		}
	}
	return Decision{Process: true}
}
