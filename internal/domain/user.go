package domain

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account row. Password holds only a bcrypt hash. Deleted users
// are kept as soft-deleted rows and excluded from default queries.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64" json:"username" form:"username"`
	Email     string    `gorm:"uniqueIndex;size:128" json:"email" form:"email"`
	Password  string    `gorm:"size:128" json:"-"`
	Role      string    `gorm:"size:16" json:"role"`
	IsDeleted bool      `gorm:"index;default:false" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (User) TableName() string {
	return "users"
}
