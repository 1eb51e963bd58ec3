package schoolapi

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a numeric identifier that the backend may send as a JSON number or
// as a string.
type ID int

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Class is the class a student belongs to.
type Class struct {
	ID   ID     `json:"id"`
	Name string `json:"nama"`
}

// Student is a student directory entry.
type Student struct {
	ID    ID     `json:"id"`
	Name  string `json:"nama"`
	Class Class  `json:"kelas"`
}

// InClass reports whether the student belongs to the class with classID.
func (s *Student) InClass(classID int) bool {
	return int(s.Class.ID) == classID
}

// ModelFile is one entry of the model distribution listing.
type ModelFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size,omitempty"`
	Modified    string `json:"modified,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

type modelListResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Files   []ModelFile `json:"files"`
}
