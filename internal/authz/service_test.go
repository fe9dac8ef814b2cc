package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	return svc
}

func mustEnforce(t *testing.T, svc *Service, adminID uint, path, method string) bool {
	t.Helper()
	allow, err := svc.EnforceAdmin(adminID, path, method)
	if err != nil {
		t.Fatalf("enforce %s %s failed: %v", method, path, err)
	}
	return allow
}

func TestBuiltinRoleMatrix(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	const (
		auditor = uint(1)
		support = uint(2)
		finance = uint(3)
	)
	if err := svc.SetAdminRoles(auditor, []string{RoleReadonlyAuditor}); err != nil {
		t.Fatalf("set auditor roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(support, []string{RoleSupport}); err != nil {
		t.Fatalf("set support roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(finance, []string{RoleFinance}); err != nil {
		t.Fatalf("set finance roles failed: %v", err)
	}

	cases := []struct {
		admin  uint
		method string
		path   string
		want   bool
	}{
		{auditor, "GET", "/api/v1/admin/commissions", true},
		{auditor, "GET", "/api/v1/admin/commissions/export", true},
		{auditor, "PUT", "/api/v1/admin/commissions/:id/status", false},
		{support, "PUT", "/api/v1/admin/users/:id/verify-bank-details", true},
		{support, "POST", "/api/v1/admin/commissions/bulk-payout", false},
		{support, "GET", "/api/v1/admin/audit-logs", true},
		{finance, "PUT", "/api/v1/admin/commissions/:id/status", true},
		{finance, "POST", "/api/v1/admin/commissions/bank-transfer", true},
		{finance, "PUT", "/api/v1/admin/payout-requests/:id/process", true},
		{finance, "PUT", "/api/v1/admin/users/:id/verify-bank-details", false},
		{finance, "DELETE", "/api/v1/admin/commissions/:id/status", false},
	}
	for _, tc := range cases {
		if got := mustEnforce(t, svc, tc.admin, tc.path, tc.method); got != tc.want {
			t.Fatalf("admin %d %s %s want %v got %v", tc.admin, tc.method, tc.path, tc.want, got)
		}
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	want := []string{"role:finance", "role:readonly_auditor", "role:support"}
	if strings.Join(roles, ",") != strings.Join(want, ",") {
		t.Fatalf("roles want %v got %v", want, roles)
	}
}

func TestSetAdminRolesOverrideAndUnknownRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetAdminRoles(5, []string{RoleSupport}); err != nil {
		t.Fatalf("set support failed: %v", err)
	}
	if err := svc.SetAdminRoles(5, []string{RoleFinance}); err != nil {
		t.Fatalf("set finance failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(5)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("roles want [role:finance] got %v", roles)
	}

	err = svc.SetAdminRoles(5, []string{"ghost"})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("unknown role want ErrRoleNotFound got %v", err)
	}
	roles, _ = svc.GetAdminRoles(5)
	if len(roles) != 1 {
		t.Fatalf("failed assignment should keep previous roles, got %v", roles)
	}
}

func TestGrantRevokeCustomRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("exporter", "/admin/commissions/export", "get"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if err := svc.SetAdminRoles(9, []string{"exporter"}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}
	if !mustEnforce(t, svc, 9, "/api/v1/admin/commissions/export", "GET") {
		t.Fatalf("exporter should be allowed")
	}
	if mustEnforce(t, svc, 9, "/api/v1/admin/commissions", "GET") {
		t.Fatalf("exporter should not list commissions")
	}

	policies, err := svc.GetAdminPolicies(9)
	if err != nil {
		t.Fatalf("get admin policies failed: %v", err)
	}
	if len(policies) != 1 || policies[0].Object != "/admin/commissions/export" || policies[0].Action != "GET" {
		t.Fatalf("unexpected policies: %+v", policies)
	}

	if err := svc.RevokeRolePolicy("exporter", "/admin/commissions/export", "GET"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if mustEnforce(t, svc, 9, "/api/v1/admin/commissions/export", "GET") {
		t.Fatalf("revoked policy should deny")
	}
	if err := svc.GrantRolePolicy("exporter", "/admin/commissions", " "); !errors.Is(err, ErrActionRequired) {
		t.Fatalf("empty action want ErrActionRequired got %v", err)
	}
}

func TestGetAdminPoliciesIncludesInherited(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetAdminRoles(4, []string{RoleSupport}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}
	policies, err := svc.GetAdminPolicies(4)
	if err != nil {
		t.Fatalf("get policies failed: %v", err)
	}
	found := false
	for _, p := range policies {
		if p.Object == "/admin/*" && p.Action == "GET" {
			found = true
		}
	}
	if !found {
		t.Fatalf("support should inherit auditor GET policy, got %+v", policies)
	}
}

func TestNormalizeHelpers(t *testing.T) {
	if got := NormalizeObject("/api/v1/admin/commissions"); got != "/admin/commissions" {
		t.Fatalf("normalize object got %s", got)
	}
	if got := NormalizeObject(""); got != "/" {
		t.Fatalf("empty object got %s", got)
	}
	if got, _ := NormalizeRole(" finance team "); got != "role:finance_team" {
		t.Fatalf("normalize role got %s", got)
	}
	if _, err := NormalizeRole("role:"); !errors.Is(err, ErrRoleRequired) {
		t.Fatalf("empty role want ErrRoleRequired got %v", err)
	}
	if _, err := NormalizeRole("__anchor__"); !errors.Is(err, ErrRoleReserved) {
		t.Fatalf("anchor role want ErrRoleReserved got %v", err)
	}
	if !IsImmutableRole("finance") || IsImmutableRole("exporter") {
		t.Fatalf("immutable role detection wrong")
	}
}
