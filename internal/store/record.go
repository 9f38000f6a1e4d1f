package store

// Record represents a single completed plate analysis.
//
// The JSON field names and their order are the on-disk dataset format and
// must not change.
type Record struct {
	ID         string  `json:"id" gorm:"column:id;primaryKey"`
	Date       string  `json:"date" gorm:"column:date;index"`
	Time       string  `json:"time" gorm:"column:time"`
	Dish       string  `json:"dish" gorm:"column:dish;index"`
	Image      string  `json:"image" gorm:"column:image"`
	Result     string  `json:"result" gorm:"column:result"`
	Confidence float64 `json:"confidence" gorm:"column:confidence"`
}

// TableName sets the table name for the SQLite mirror.
func (Record) TableName() string {
	return "records"
}

// DisplayConfidence returns the confidence clamped into [0, 100] for
// presentation. The stored value itself is never clamped.
func (r *Record) DisplayConfidence() float64 {
	switch {
	case r.Confidence < 0:
		return 0
	case r.Confidence > 100:
		return 100
	default:
		return r.Confidence
	}
}
