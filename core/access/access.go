// Package access holds the roles and the authorization policy shared by every domain service.
package access

// Role is the single role a user holds at a time.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

var AllRoles = []Role{RoleStudent, RoleLecturer, RoleAdmin}

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Actor is the authenticated caller of an operation, as extracted from a verified access token.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Action names a guarded operation.
type Action string

const (
	ActionViewUser   Action = "user:view"
	ActionManageUser Action = "user:manage"

	ActionCreateAssignment      Action = "assignment:create"
	ActionViewAssignment        Action = "assignment:view"
	ActionUpdateAssignment      Action = "assignment:update"
	ActionDeleteAssignment      Action = "assignment:delete"
	ActionReviewAssignment      Action = "assignment:review" // submissions list & completion summary
	ActionCreateSubmission      Action = "submission:create"
	ActionViewOwnSubmission     Action = "submission:view-own"
	ActionReviewSubmission      Action = "submission:review"
	ActionGradeSubmission       Action = "submission:grade"
	ActionListOwnSubmissions    Action = "submission:list-own"
	ActionListReviewSubmissions Action = "submission:list-review"
	ActionListAllSubmissions    Action = "submission:list-all"
	ActionCreateReport          Action = "report:create"
	ActionListReceivedReports   Action = "report:list-received"
	ActionListAuthoredReports   Action = "report:list-authored"
	ActionListAllReports        Action = "report:list-all"
	ActionStudentDashboard      Action = "dashboard:student"
	ActionLecturerDashboard     Action = "dashboard:lecturer"
	ActionAdminDashboard        Action = "dashboard:admin"
)

// Ownership tells how the resource owner takes part in a decision.
type Ownership int

const (
	// OwnerNone ignores the resource owner.
	OwnerNone Ownership = iota
	// OwnerOnly requires the caller to be the resource owner.
	OwnerOnly
	// OwnerOrAdmin requires the caller to be the resource owner unless they are an admin.
	OwnerOrAdmin
)

// Rule is the allow-list and ownership requirement of one Action.
type Rule struct {
	Roles     []Role
	Ownership Ownership
}

var (
	anyRole         = []Role{RoleStudent, RoleLecturer, RoleAdmin}
	lecturerOrAdmin = []Role{RoleLecturer, RoleAdmin}
)

// Rules is the authorization table. It is the only place where role sets are declared.
var Rules = map[Action]Rule{
	ActionViewUser:   {Roles: anyRole, Ownership: OwnerOrAdmin},
	ActionManageUser: {Roles: []Role{RoleAdmin}},

	ActionCreateAssignment: {Roles: []Role{RoleLecturer}},
	ActionViewAssignment:   {Roles: anyRole},
	ActionUpdateAssignment: {Roles: lecturerOrAdmin, Ownership: OwnerOrAdmin},
	ActionDeleteAssignment: {Roles: lecturerOrAdmin, Ownership: OwnerOrAdmin},
	ActionReviewAssignment: {Roles: lecturerOrAdmin, Ownership: OwnerOrAdmin},

	ActionCreateSubmission:      {Roles: []Role{RoleStudent}},
	ActionViewOwnSubmission:     {Roles: []Role{RoleStudent}, Ownership: OwnerOnly},
	ActionReviewSubmission:      {Roles: lecturerOrAdmin, Ownership: OwnerOrAdmin},
	ActionGradeSubmission:       {Roles: []Role{RoleLecturer}, Ownership: OwnerOnly},
	ActionListOwnSubmissions:    {Roles: []Role{RoleStudent}},
	ActionListReviewSubmissions: {Roles: []Role{RoleLecturer}},
	ActionListAllSubmissions:    {Roles: []Role{RoleAdmin}},

	ActionCreateReport:        {Roles: []Role{RoleLecturer}},
	ActionListReceivedReports: {Roles: []Role{RoleStudent}},
	ActionListAuthoredReports: {Roles: []Role{RoleLecturer}},
	ActionListAllReports:      {Roles: []Role{RoleAdmin}},

	ActionStudentDashboard:  {Roles: []Role{RoleStudent}},
	ActionLecturerDashboard: {Roles: []Role{RoleLecturer}},
	ActionAdminDashboard:    {Roles: []Role{RoleAdmin}},
}
