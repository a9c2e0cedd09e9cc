package portal

// Role 用户角色枚举.
// 策略级角色（admin/policy_maker）拥有全局可见性；
// 实验室级角色（lab_manager/lab_assistant）只能访问本学院+系部范围内的数据。
type Role string

const (
	RoleAdmin        Role = "admin"         // 系统管理员（策略级）
	RolePolicyMaker  Role = "policy_maker"  // 决策管理者（策略级）
	RoleLabManager   Role = "lab_manager"   // 实验室管理员（实验室级）
	RoleLabAssistant Role = "lab_assistant" // 实验室助理（实验室级）
)

// IsPolicyLevel 判断是否为策略级角色.
func (r Role) IsPolicyLevel() bool {
	return r == RoleAdmin || r == RolePolicyMaker
}

// IsValid 判断角色是否合法.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RolePolicyMaker, RoleLabManager, RoleLabAssistant:
		return true
	}
	return false
}

// User 用户信息.
type User struct {
	BaseModel
	Name       string `gorm:"column:name;type:varchar(100)" json:"name"`                    // 姓名
	Email      string `gorm:"column:email;type:varchar(255);uniqueIndex" json:"email"`      // 邮箱
	Role       Role   `gorm:"column:role;type:varchar(50);index" json:"role"`               // 角色
	Institute  string `gorm:"column:institute;type:varchar(100);index" json:"institute"`    // 所属学院
	Department string `gorm:"column:department;type:varchar(100);index" json:"department"`  // 所属系部
	Active     bool   `gorm:"column:active;default:true" json:"active"`                     // 是否启用
}

// TableName 指定表名.
func (User) TableName() string {
	return "user"
}
