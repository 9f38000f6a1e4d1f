package store

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/baseera/baseera-go/internal/errors"
)

// csvHeader matches the persisted record field names and order exactly.
var csvHeader = []string{"id", "date", "time", "dish", "image", "result", "confidence"}

// utf8BOM is prepended so spreadsheet applications detect UTF-8 and
// non-ASCII dish names survive the import.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportCSV writes the record collection to w as comma-separated text with a
// header row, one row per record, in the given order.
func ExportCSV(w io.Writer, records []Record) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return errors.New(err).Category(errors.CategoryFileIO).Build()
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.New(err).Category(errors.CategoryFileIO).Build()
	}

	for i := range records {
		r := &records[i]
		row := []string{
			r.ID,
			r.Date,
			r.Time,
			r.Dish,
			r.Image,
			r.Result,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return errors.New(err).
				Category(errors.CategoryFileIO).
				Context("record_id", r.ID).
				Build()
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.New(err).Category(errors.CategoryFileIO).Build()
	}
	return nil
}
