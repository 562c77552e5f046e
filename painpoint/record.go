package painpoint

import (
	"fmt"

	"github.com/uptrace/bun"
)

// TableName is the backing table for pain point records.
const TableName = "painpoint"

// Record is a single contributor's flag on a class.
type Record struct {
	bun.BaseModel `bun:"table:painpoint,alias:pp" json:"-" yaml:"-"`

	ID       int32  `bun:"id,pk" json:"id" yaml:"id"`
	ClassID  int32  `bun:"classid,notnull" json:"class_id" yaml:"class_id"`
	UserName string `bun:"username,type:varchar(256)" json:"user_name" yaml:"user_name"`
	Flagged  bool   `bun:"thumbsdown" json:"flagged" yaml:"flagged"`
}

// BelongsTo reports whether the record was written by userName, ignoring case.
func (r Record) BelongsTo(userName string) bool {
	return NormalizeUser(r.UserName) == NormalizeUser(userName)
}

func (r Record) String() string {
	return fmt.Sprintf("painpoint{id=%d class=%d user=%q flagged=%t}", r.ID, r.ClassID, r.UserName, r.Flagged)
}
