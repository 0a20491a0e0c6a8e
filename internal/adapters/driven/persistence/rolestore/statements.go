package rolestore

import "fmt"

// statements is the command text of every query the store issues. It is
// built once from quoted identifiers; values are always bound as @0, @1.
type statements struct {
	findUserID string
	findRoleID string

	insertRole          string
	deleteRole          string
	findMemberOfRole    string
	deleteMembersOfRole string

	insertMembership string
	deleteMembership string
	countMembership  string

	allRoles        string
	rolesForUser    string
	usersInRole     string
	findUsersInRole string
}

func newStatements(q quotedMapping, explicitRoleID bool) statements {
	insertRole := fmt.Sprintf("INSERT INTO %s (%s) VALUES (@0)", q.roleTable, q.roleNameOfRole)
	if explicitRoleID {
		insertRole = fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (@0, @1)", q.roleTable, q.roleIDOfRole, q.roleNameOfRole)
	}

	// u, ur and r alias the user, membership and role tables
	joinUsersInRole := fmt.Sprintf(
		"FROM %s u, %s ur, %s r WHERE (r.%s = @0 AND ur.%s = r.%s AND ur.%s = u.%s",
		q.userTable, q.usersInRoleTable, q.roleTable,
		q.roleNameOfRole, q.roleIDOfUserInRole, q.roleIDOfRole, q.userIDOfUserInRole, q.userIDOfUser,
	)

	return statements{
		findUserID: fmt.Sprintf("SELECT %s FROM %s WHERE (%s = @0)", q.userIDOfUser, q.userTable, q.userNameOfUser),
		findRoleID: fmt.Sprintf("SELECT %s FROM %s WHERE (%s = @0)", q.roleIDOfRole, q.roleTable, q.roleNameOfRole),

		insertRole:          insertRole,
		deleteRole:          fmt.Sprintf("DELETE FROM %s WHERE (%s = @0)", q.roleTable, q.roleIDOfRole),
		findMemberOfRole:    fmt.Sprintf("SELECT %s FROM %s WHERE (%s = @0)", q.roleIDOfUserInRole, q.usersInRoleTable, q.roleIDOfUserInRole),
		deleteMembersOfRole: fmt.Sprintf("DELETE FROM %s WHERE (%s = @0)", q.usersInRoleTable, q.roleIDOfUserInRole),

		insertMembership: fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (@0, @1)", q.usersInRoleTable, q.userIDOfUserInRole, q.roleIDOfUserInRole),
		deleteMembership: fmt.Sprintf("DELETE FROM %s WHERE (%s = @0 AND %s = @1)", q.usersInRoleTable, q.userIDOfUserInRole, q.roleIDOfUserInRole),
		countMembership: fmt.Sprintf(
			"SELECT COUNT(*) FROM %s u, %s ur, %s r WHERE (u.%s = @0 AND r.%s = @1 AND ur.%s = r.%s AND ur.%s = u.%s)",
			q.userTable, q.usersInRoleTable, q.roleTable,
			q.userNameOfUser, q.roleNameOfRole, q.roleIDOfUserInRole, q.roleIDOfRole, q.userIDOfUserInRole, q.userIDOfUser,
		),

		allRoles: fmt.Sprintf("SELECT %s FROM %s", q.roleNameOfRole, q.roleTable),
		rolesForUser: fmt.Sprintf(
			"SELECT r.%s FROM %s ur, %s r WHERE (ur.%s = @0 AND ur.%s = r.%s) GROUP BY r.%s",
			q.roleNameOfRole, q.usersInRoleTable, q.roleTable,
			q.userIDOfUserInRole, q.roleIDOfUserInRole, q.roleIDOfRole, q.roleNameOfRole,
		),
		usersInRole:     fmt.Sprintf("SELECT u.%s %s)", q.userNameOfUser, joinUsersInRole),
		findUsersInRole: fmt.Sprintf("SELECT u.%s %s AND u.%s LIKE @1)", q.userNameOfUser, joinUsersInRole, q.userNameOfUser),
	}
}
