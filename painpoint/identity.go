package painpoint

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
)

// HashFunc maps a canonical string to a 32-bit identity.
type HashFunc func(s string) int32

// XXHash folds the 64-bit xxhash of s into 32 bits.
func XXHash(s string) int32 {
	sum := xxhash.Sum64String(s)
	return int32(uint32(sum) ^ uint32(sum>>32))
}

// JavaStringHash computes s[0]*31^(n-1) + ... + s[n-1] over UTF-16 code units
// with int32 overflow, matching java.lang.String#hashCode.
func JavaStringHash(s string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(unit)
	}
	return h
}

// HashByName resolves a configured hash name. Unknown names report false.
func HashByName(name string) (HashFunc, bool) {
	switch strings.ToLower(name) {
	case "", "xxhash":
		return XXHash, true
	case "java":
		return JavaStringHash, true
	default:
		return nil, false
	}
}

// Deriver turns paths and user names into class and record ids.
type Deriver struct {
	hash HashFunc
}

// NewDeriver returns a Deriver using hash. A nil hash selects XXHash.
func NewDeriver(hash HashFunc) Deriver {
	if hash == nil {
		hash = XXHash
	}
	return Deriver{hash: hash}
}

// ClassID derives the class id for fileName located at absolutePath inside projectName.
func (d Deriver) ClassID(fileName, absolutePath, projectName string) int32 {
	return d.hashFunc()(CanonicalClassPath(fileName, absolutePath, projectName))
}

// RecordID derives the record id for the (classID, userName) pair.
func (d Deriver) RecordID(classID int32, userName string) int32 {
	key := strconv.FormatInt(int64(classID), 10) + "\x00" + NormalizeUser(userName)
	return d.hashFunc()(key)
}

func (d Deriver) hashFunc() HashFunc {
	if d.hash == nil {
		return XXHash
	}
	return d.hash
}

var defaultDeriver = NewDeriver(XXHash)

// DeriveClassID derives a class id with the default hash.
func DeriveClassID(fileName, absolutePath, projectName string) int32 {
	return defaultDeriver.ClassID(fileName, absolutePath, projectName)
}

// DeriveRecordID derives a record id with the default hash.
func DeriveRecordID(classID int32, userName string) int32 {
	return defaultDeriver.RecordID(classID, userName)
}

// NormalizeUser is the single case-folding rule for user names.
func NormalizeUser(userName string) string {
	return strings.ToLower(userName)
}

// CanonicalClassPath builds /ProjectName/.../FileName from an absolute path that
// may point at the class file itself or at its directory, with or without a
// trailing separator. Backslash separators are accepted.
func CanonicalClassPath(fileName, absolutePath, projectName string) string {
	path := strings.ReplaceAll(absolutePath, `\`, "/")
	path = strings.TrimRight(path, "/")

	segments := strings.Split(path, "/")
	start := 0
	if projectName != "" {
		for i, seg := range segments {
			if seg == projectName {
				start = i
				break
			}
		}
	}

	parts := make([]string, 0, len(segments)-start+1)
	for _, seg := range segments[start:] {
		if seg != "" {
			parts = append(parts, seg)
		}
	}

	if fileName != "" && (len(parts) == 0 || parts[len(parts)-1] != fileName) {
		parts = append(parts, fileName)
	}

	return "/" + strings.Join(parts, "/")
}
