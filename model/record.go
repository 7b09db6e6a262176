package model

// FileRecord is one manifest row: an audio file and its frame count.
type FileRecord struct {
	Path       string `json:"path"`       // Absolute path at probe time
	FrameCount int64  `json:"frameCount"` // Per-channel sample instants, never negative
}

// Split 是一次划分的结果：Validation 与 Training 互不相交且覆盖全部记录。
type Split struct {
	Validation []FileRecord `json:"validation"`
	Training   []FileRecord `json:"training"`
}

// Len returns the total number of records in both subsets.
func (s Split) Len() int {
	return len(s.Validation) + len(s.Training)
}
