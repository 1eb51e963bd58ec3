package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
)

// ErrMissingSessionParams is returned when the launcher did not hand over
// every required session parameter.
var ErrMissingSessionParams = errors.New("missing session parameters")

// Session is the immutable configuration of one kiosk run, provided once by
// the launcher before the frame loop starts.
type Session struct {
	ClassID        int    `json:"selected_class_id"`
	ClassName      string `json:"selected_class_name"`
	ProjectPath    string `json:"project_path"`
	AttendanceType string `json:"tipe_absen"`
	EnvPath        string `json:"env_path"`
}

// classID accepts both 7 and "7", the launcher sends whichever the class list API returned.
type classID int

func (c *classID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid class id %q: %w", s, err)
	}
	*c = classID(n)
	return nil
}

// ReadSession reads a single JSON line of launcher parameters from r.
func ReadSession(r io.Reader) (*Session, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not read session parameters: %w", err)
	}
	if strings.TrimSpace(line) == "" {
		return nil, ErrMissingSessionParams
	}

	var raw struct {
		ClassID        classID `json:"selected_class_id"`
		ClassName      string  `json:"selected_class_name"`
		ProjectPath    string  `json:"project_path"`
		AttendanceType string  `json:"tipe_absen"`
		EnvPath        string  `json:"env_path"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("could not parse session parameters: %w", err)
	}

	s := &Session{
		ClassID:        int(raw.ClassID),
		ClassName:      raw.ClassName,
		ProjectPath:    raw.ProjectPath,
		AttendanceType: raw.AttendanceType,
		EnvPath:        raw.EnvPath,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that every required parameter is present and defaults the
// attendance type to check-in.
func (s *Session) Validate() error {
	var missing []string
	if s.ClassID == 0 {
		missing = append(missing, "selected_class_id")
	}
	if s.ClassName == "" {
		missing = append(missing, "selected_class_name")
	}
	if s.ProjectPath == "" {
		missing = append(missing, "project_path")
	}
	if s.EnvPath == "" {
		missing = append(missing, "env_path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSessionParams, strings.Join(missing, ", "))
	}

	if s.AttendanceType == "" {
		s.AttendanceType = constants.AttendanceCheckIn
	}
	return nil
}

// Title is the header line shown on the kiosk, e.g. "XII IPA 1 | Absen Masuk".
func (s *Session) Title() string {
	kind := s.AttendanceType
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + strings.ToLower(kind[1:])
	}
	return fmt.Sprintf("%s | Absen %s", s.ClassName, kind)
}

// LoadEnv loads the launcher's .env file. Variables already present in the
// environment are kept.
func (s *Session) LoadEnv() error {
	if err := godotenv.Load(s.EnvPath); err != nil {
		return fmt.Errorf("could not load env file %s: %w", s.EnvPath, err)
	}
	return nil
}
