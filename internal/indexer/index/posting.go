package index

import (
	"fmt"
	"strconv"
	"strings"
)

// Posting is one document's entry in a term's posting list.
type Posting struct {
	DocID     string
	TermFreq  int
	Positions []int
	Weight    float64
	HasWeight bool
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// Encode renders p as a posting field: doc,weight,tf[,pos...]. Empty
// optional fields are kept as empty strings so the field order is fixed.
func (p Posting) Encode(positional bool) string {
	var sb strings.Builder
	p.AppendTo(&sb, positional)
	return sb.String()
}

func (p Posting) AppendTo(sb *strings.Builder, positional bool) {
	sb.WriteString(p.DocID)
	sb.WriteByte(',')
	if p.HasWeight {
		sb.WriteString(strconv.FormatFloat(p.Weight, 'f', 6, 64))
	}
	sb.WriteByte(',')
	if p.TermFreq > 0 {
		sb.WriteString(strconv.Itoa(p.TermFreq))
	}
	if positional {
		for _, pos := range p.Positions {
			sb.WriteByte(',')
			sb.WriteString(strconv.Itoa(pos))
		}
	}
}

// DecodePosting parses a field written by Encode. Missing or empty weight,
// term frequency and positions are accepted.
func DecodePosting(field string) (Posting, error) {
	parts := strings.Split(field, ",")
	if parts[0] == "" {
		return Posting{}, fmt.Errorf("posting %q: empty document id", field)
	}
	p := Posting{DocID: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		w, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Posting{}, fmt.Errorf("posting %q: weight: %w", field, err)
		}
		p.Weight = w
		p.HasWeight = true
	}
	if len(parts) > 2 && parts[2] != "" {
		tf, err := strconv.Atoi(parts[2])
		if err != nil {
			return Posting{}, fmt.Errorf("posting %q: term frequency: %w", field, err)
		}
		p.TermFreq = tf
	}
	if len(parts) > 3 {
		p.Positions = make([]int, 0, len(parts)-3)
		for _, raw := range parts[3:] {
			if raw == "" {
				continue
			}
			pos, err := strconv.Atoi(raw)
			if err != nil {
				return Posting{}, fmt.Errorf("posting %q: position: %w", field, err)
			}
			p.Positions = append(p.Positions, pos)
		}
	}
	return p, nil
}

// SplitLine splits an index line into its key (term, optionally followed by
// ",idf") and its raw posting fields.
func SplitLine(line string) (key string, fields []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// LineTerm returns the term of an index line without parsing its postings.
func LineTerm(line string) string {
	key, _, _ := strings.Cut(line, " ")
	term, _, _ := strings.Cut(key, ",")
	return term
}

// ValidTerm reports whether term can be stored in the line format.
func ValidTerm(term string) bool {
	return term != "" && !strings.ContainsAny(term, " ,\t\r\n")
}
