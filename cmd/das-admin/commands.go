package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/repository"
	"github.com/noah-isme/das-api/internal/service"
	"github.com/noah-isme/das-api/pkg/database"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Run schema migrations"}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			if err := database.MigrateUp(h.DB().DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations, one step by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			h, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			if err := database.MigrateDown(h.DB().DB, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}

	cmd.AddCommand(up, down)
	return cmd
}

func verifyRoutingCmd(a *app) *cobra.Command {
	var fileID string
	var all bool
	cmd := &cobra.Command{
		Use:   "verify-routing",
		Short: "List actions whose routed record is missing or owned by someone else",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			checks, err := repository.NewActionRepository(h.DB()).RoutingChecks(cmd.Context(), fileID)
			if err != nil {
				return err
			}
			broken := renderRoutingChecks(cmd.OutOrStdout(), checks, all)
			if broken > 0 {
				return fmt.Errorf("%d of %d actions are inconsistent", broken, len(checks))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d actions checked, all consistent\n", len(checks))
			return nil
		},
	}
	cmd.Flags().StringVar(&fileID, "file", "", "limit the check to one source file")
	cmd.Flags().BoolVar(&all, "all", false, "print consistent actions too")
	return cmd
}

type resetFlags struct {
	from         string
	to           string
	siteCode     string
	approvalType string
	adminID      string
}

func (f resetFlags) request() (dto.ResetApprovalsRequest, error) {
	req := dto.ResetApprovalsRequest{
		SiteCode:     strings.TrimSpace(f.siteCode),
		ApprovalType: models.ApprovalType(strings.TrimSpace(f.approvalType)),
	}
	if req.ApprovalType != "" && !req.ApprovalType.Valid() {
		return req, fmt.Errorf("unknown approval type %q", f.approvalType)
	}
	var err error
	if req.From, err = parseDateFlag("from", f.from); err != nil {
		return req, err
	}
	if req.To, err = parseDateFlag("to", f.to); err != nil {
		return req, err
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return req, fmt.Errorf("--to must not be before --from")
	}
	return req, nil
}

func parseDateFlag(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--%s: expected YYYY-MM-DD or RFC3339, got %q", name, raw)
}

func resetApprovalsCmd(a *app) *cobra.Command {
	var f resetFlags
	cmd := &cobra.Command{
		Use:   "reset-approvals",
		Short: "Delete approvals and clear their outcome on site records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(f.adminID) == "" {
				return fmt.Errorf("--admin-id is required")
			}
			req, err := f.request()
			if err != nil {
				return err
			}
			h, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			conn := h.DB()
			metrics := service.NewMetricsService()
			cacheSvc := a.reportCache(cmd.Context(), metrics)
			approvals := service.NewApprovalService(
				repository.NewSiteRecordRepository(conn),
				repository.NewActionRepository(conn),
				repository.NewApprovalRepository(conn),
				repository.NewDirectoryRepository(conn),
				repository.NewTxManager(conn),
				repository.NewAuditRepository(conn),
				cacheSvc,
				validator.New(),
				metrics,
				a.logger,
			)
			result, err := approvals.Reset(cmd.Context(), req, models.Actor{UserID: f.adminID, Role: models.RoleAdmin})
			if err != nil {
				return err
			}
			renderResetResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.from, "from", "", "only approvals submitted on or after this date")
	cmd.Flags().StringVar(&f.to, "to", "", "only approvals submitted on or before this date")
	cmd.Flags().StringVar(&f.siteCode, "site-code", "", "only approvals of this site")
	cmd.Flags().StringVar(&f.approvalType, "approval-type", "", "only approvals of this type")
	cmd.Flags().StringVar(&f.adminID, "admin-id", "", "admin user recorded in the audit log")
	return cmd
}

func issueTokenCmd(a *app) *cobra.Command {
	var actor models.Actor
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a bearer token accepted by the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor.UserID == "" {
				return fmt.Errorf("--user-id is required")
			}
			parsed, ok := models.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			actor.Role = parsed
			token, err := service.NewAuthService(a.cfg.JWT).IssueToken(actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor.UserID, "user-id", "", "subject of the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "role claim")
	cmd.Flags().StringVar(&actor.Division, "division", "", "division claim")
	cmd.Flags().StringVar(&actor.Vendor, "vendor", "", "vendor claim")
	cmd.Flags().StringVar(&actor.FullName, "name", "", "full name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
