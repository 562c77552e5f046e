// Package painpoint defines the pain point record and the deterministic
// identity scheme used to key it.
//
// # Overview
//
// A pain point is a thumbs-down flag a contributor attaches to a source class.
// Records are keyed by the pair (class id, user name):
//
//   - the class id is derived from the class file's project-relative path
//   - the record id is derived from the class id and the normalized user name
//
// Both derivations are pure. The same inputs always produce the same ids,
// across processes and restarts, so a record written by one session can be
// found again by another without a lookup table.
//
// # Canonical Class Paths
//
// The class id is the hash of a canonical path of the form
// /ProjectName/dir/.../FileName. All of the following produce the same id:
//
//	painpoint.DeriveClassID("FileManager.java", "/Users/me/ProjectName/app/src/fun", "ProjectName")
//	painpoint.DeriveClassID("FileManager.java", "/Users/me/ProjectName/app/src/fun/", "ProjectName")
//	painpoint.DeriveClassID("FileManager.java", "/Users/me/ProjectName/app/src/fun/FileManager.java", "ProjectName")
//
// # User Names
//
// User names are compared case-insensitively. NormalizeUser is applied both
// before hashing the record id and before comparing stored names, so
// "Alice" and "alice" always address the same record.
//
// # Hash Functions
//
// The default hash is xxhash64 folded to 32 bits. JavaStringHash reproduces
// the 31-multiplier string hash used by the legacy IDE plugin and should be
// selected when pointing at a table that plugin populated:
//
//	deriver := painpoint.NewDeriver(painpoint.JavaStringHash)
//	classID := deriver.ClassID("FileManager.java", path, "ProjectName")
//
// Ids are 32-bit, so distinct pairs can collide. Collisions are not detected.
package painpoint
