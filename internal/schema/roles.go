package schema

import "regexp"

// roleRule pairs a table-name pattern with the role it implies.
// Rules are evaluated in order; the first match wins.
type roleRule struct {
	regex *regexp.Regexp
	role  Role
}

var roleRules = []roleRule{
	{regexp.MustCompile(`(?i)emp|staff|person|personnel`), RoleEmployees},
	{regexp.MustCompile(`(?i)dept|division|department`), RoleDepartments},
	{regexp.MustCompile(`(?i)doc|document|resume`), RoleDocuments},
	{regexp.MustCompile(`(?i)proj|project|assignment|task`), RoleProjects},
}

// InferRole labels a table from its name, or returns RoleNone.
func InferRole(table string) Role {
	for _, r := range roleRules {
		if r.regex.MatchString(table) {
			return r.role
		}
	}
	return RoleNone
}
