package schoolapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// AttendanceRecord is the body of an attendance submission.
type AttendanceRecord struct {
	StudentID int     `json:"siswa_id"`
	ClassID   int     `json:"kelas_id"`
	Date      string  `json:"tanggal"`
	TimeIn    string  `json:"waktu_masuk"`
	TimeOut   *string `json:"waktu_keluar"`
	Type      string  `json:"tipe_absen"`
}

// NewRecord builds a record stamped with now. Both times carry the current
// time; Submit drops the check-out time for check-ins.
func NewRecord(studentID, classID int, now time.Time, attendanceType string) AttendanceRecord {
	hm := now.Format(timeLayout)
	return AttendanceRecord{
		StudentID: studentID,
		ClassID:   classID,
		Date:      now.Format(dateLayout),
		TimeIn:    hm,
		TimeOut:   &hm,
		Type:      attendanceType,
	}
}

// Submit posts an attendance record. A 200 or 201 response is success,
// anything else including a timeout is an error. There is no retry.
func (c *Client) Submit(ctx context.Context, record AttendanceRecord) error {
	if record.Type == constants.AttendanceCheckIn {
		record.TimeOut = nil
	}

	if _, err := doRequestRaw(ctx, c, http.MethodPost, "api/siswa/create", record, http.StatusOK, http.StatusCreated); err != nil {
		return fmt.Errorf("could not submit attendance for student %d: %w", record.StudentID, err)
	}
	return nil
}
