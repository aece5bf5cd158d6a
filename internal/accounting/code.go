package accounting

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxCodeLength bounds the persisted code column.
const MaxCodeLength = 20

var codePattern = regexp.MustCompile(`^[1-9][0-9]*(\.[1-9][0-9]*)*$`)

// ValidateCode checks the dot-segmented code format.
func ValidateCode(code string) error {
	if len(code) > MaxCodeLength {
		return invalid(ReasonInvalidCode, "code", "code %q exceeds %d characters", code, MaxCodeLength)
	}
	if !codePattern.MatchString(code) {
		return invalid(ReasonInvalidCode, "code", "code %q is not dot-separated positive integers", code)
	}
	for _, seg := range strings.Split(code, ".") {
		if _, err := strconv.ParseInt(seg, 10, 64); err != nil {
			return invalid(ReasonInvalidCode, "code", "segment %q out of range", seg)
		}
	}
	return nil
}

// CodeLevel is the number of segments in a code.
func CodeLevel(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, ".") + 1
}

// ParentCode strips the last segment. Root codes return "".
func ParentCode(code string) string {
	idx := strings.LastIndexByte(code, '.')
	if idx < 0 {
		return ""
	}
	return code[:idx]
}

// LastSegment returns the numeric value of the final code segment.
func LastSegment(code string) int64 {
	seg := code[strings.LastIndexByte(code, '.')+1:]
	n, err := strconv.ParseInt(seg, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// NextCode suggests the code following the highest sibling. An empty parent
// yields a root code.
func NextCode(parentCode string, siblings []string) string {
	var max int64
	for _, code := range siblings {
		if seg := LastSegment(code); seg > max {
			max = seg
		}
	}
	next := strconv.FormatInt(max+1, 10)
	if parentCode == "" {
		return next
	}
	return parentCode + "." + next
}

// CompareCodes orders codes segment by segment numerically, so "1.2" sorts
// before "1.10".
func CompareCodes(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		x, _ := strconv.ParseInt(as[i], 10, 64)
		y, _ := strconv.ParseInt(bs[i], 10, 64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

// checkCodePlacement validates an explicit code against the parent it will
// hang under.
func checkCodePlacement(code string, parent *Account) error {
	if err := ValidateCode(code); err != nil {
		return err
	}
	if parent == nil {
		if CodeLevel(code) != 1 {
			return invalid(ReasonLevelMismatch, "code", "root code %q must have a single segment", code)
		}
		return nil
	}
	if !strings.HasPrefix(code, parent.Code+".") {
		return invalid(ReasonCodeParentMismatch, "code", "code %q does not start with %q", code, parent.Code+".")
	}
	if CodeLevel(code) != parent.Level+1 {
		return invalid(ReasonLevelMismatch, "code", "code %q must have %d segments", code, parent.Level+1)
	}
	return nil
}
