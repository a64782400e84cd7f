package model

type UserRole string

const (
	Student  UserRole = "student"
	Educator UserRole = "educator"
	Admin    UserRole = "admin"
)

// swagger:model User
// 令牌由外部身份服务签发，这里只保存通知和归属判断需要的字段
type User struct {
	UUIDBase
	Name  string   `gorm:"size:100;not null" json:"name"`
	Email string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role  UserRole `gorm:"size:20;default:'student'" json:"role"`
}

func (User) TableName() string {
	return "users"
}

func (r UserRole) Valid() bool {
	switch r {
	case Student, Educator, Admin:
		return true
	}
	return false
}
