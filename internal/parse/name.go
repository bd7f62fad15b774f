package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"laundry-kiosk/internal/model"
)

var (
	idRe   = regexp.MustCompile(`^([A-Za-z])\s*-?\s*(\d+)$`)
	nameRe = regexp.MustCompile(`(?i)^(washer|dryer)\s*#?\s*(\d+)$`)
)

// ParsedID holds the structured data parsed from a catalog machine id.
type ParsedID struct {
	Type model.MachineType
	Seq  int
}

// ParseMachineID extracts the machine type and sequence number from a catalog
// id such as "W1", "d-03" or "Washer 2".
func ParseMachineID(raw string) (ParsedID, error) {
	s := strings.TrimSpace(raw)

	if m := nameRe.FindStringSubmatch(s); m != nil {
		seq, _ := strconv.Atoi(m[2])
		t := model.Washer
		if strings.EqualFold(m[1], "dryer") {
			t = model.Dryer
		}
		return ParsedID{Type: t, Seq: seq}, nil
	}

	m := idRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedID{}, fmt.Errorf("unable to parse machine id: %q", raw)
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return ParsedID{}, fmt.Errorf("unable to parse sequence from id %q: %w", raw, err)
	}

	switch strings.ToUpper(m[1]) {
	case "W":
		return ParsedID{Type: model.Washer, Seq: seq}, nil
	case "D":
		return ParsedID{Type: model.Dryer, Seq: seq}, nil
	}
	return ParsedID{}, fmt.Errorf("unknown machine prefix %q in id %q", m[1], raw)
}

// DisplayName renders the default kiosk label, e.g. "Washer 01".
func DisplayName(p ParsedID) string {
	label := "Washer"
	if p.Type == model.Dryer {
		label = "Dryer"
	}
	return fmt.Sprintf("%s %02d", label, p.Seq)
}
