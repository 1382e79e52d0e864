package models

// DailySequence is the per-day, per-prefix counter backing reference
// generation. The (prefix, day) pair is the primary key; allocation is a
// single upsert-and-return statement, never a read-then-write.
type DailySequence struct {
	Prefix string `gorm:"primaryKey;size:8"`
	Day    string `gorm:"primaryKey;size:8"` // YYYYMMDD
	Value  int64  `gorm:"not null;default:0"`
}
