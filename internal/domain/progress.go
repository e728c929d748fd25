package domain

// ProgressFunc reports upload progress to the UI.
// Called repeatedly while the body is sent: (32768, 120000), (65536, 120000), ...
type ProgressFunc func(loaded, total int)
