package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gazruxenginering/doclocker/internal/access"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// expiresDateLayout is the date-only form accepted by --expires. A date-only
// expiry lasts through the end of that local day.
const expiresDateLayout = "2006-01-02"

func newAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Evaluate and administer document access",
		Long: `Document access is decided by three tiers, checked in order:
an individual grant for the participant, a group grant for the participant's
batch, and the participant's legacy access flag. The first active rule grants
access; a disabled or expired grant falls through to the next tier.`,
	}

	cmd.AddCommand(newAccessCheckCmd())
	cmd.AddCommand(newAccessGrantCmd(true))
	cmd.AddCommand(newAccessGrantCmd(false))
	cmd.AddCommand(newAccessLegacyCmd())
	cmd.AddCommand(newAccessListCmd())

	return cmd
}

func newAccessCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <subject-id>",
		Short: "Show whether a participant has document access and why",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subjectID, err := parseID(args[0])
			if err != nil {
				return err
			}

			cc := mustCLIContext(cmd.Context())

			return withStore(cmd.Context(), cc, func(st *store.Store) error {
				d, err := access.NewEvaluator(st, cc.Logger).HasAccess(cmd.Context(), subjectID)
				if err != nil {
					return err
				}

				return printDecision(cmd.OutOrStdout(), subjectID, d, cc.Flags.JSON)
			})
		},
	}
}

type decisionJSON struct {
	SubjectID int64  `json:"subject_id"`
	Granted   bool   `json:"granted"`
	Tier      string `json:"tier"`
	Reason    string `json:"reason,omitempty"`
}

func printDecision(w io.Writer, subjectID int64, d access.Decision, asJSON bool) error {
	if asJSON {
		return printJSON(w, decisionJSON{
			SubjectID: subjectID,
			Granted:   d.Granted,
			Tier:      string(d.Tier),
			Reason:    d.Reason,
		})
	}

	verdict := "denied"
	if d.Granted {
		verdict = "granted"
	}

	if d.Reason != "" {
		fmt.Fprintf(w, "Participant %d: %s (%s)\n", subjectID, verdict, d.Reason)
		return nil
	}

	fmt.Fprintf(w, "Participant %d: %s (decided by: %s)\n", subjectID, verdict, d.Tier)

	return nil
}

// grantFlags are shared by access grant and access revoke.
type grantFlags struct {
	subject int64
	batch   int64
	expires string
	note    string
	by      string
}

func newAccessGrantCmd(enable bool) *cobra.Command {
	var flags grantFlags

	use, short := "grant", "Create or update a grant for a participant or batch"
	if !enable {
		use, short = "revoke", "Disable the grant for a participant or batch"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Exactly one of --subject or --batch is required. Grants are keyed by target:
running grant again overwrites the expiry and note, and revoke keeps the
record with access disabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGrant(cmd, &flags, enable)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&flags.subject, "subject", 0, "participant id")
	f.Int64Var(&flags.batch, "batch", 0, "batch id")
	f.StringVar(&flags.note, "note", "", "free-form note stored with the grant")
	f.StringVar(&flags.by, "by", "cli", "administrator recorded as the grant creator")

	if enable {
		f.StringVar(&flags.expires, "expires", "", "expiry as RFC 3339 or YYYY-MM-DD (default: never)")
	}

	cmd.MarkFlagsOneRequired("subject", "batch")
	cmd.MarkFlagsMutuallyExclusive("subject", "batch")

	return cmd
}

func runGrant(cmd *cobra.Command, flags *grantFlags, enable bool) error {
	cc := mustCLIContext(cmd.Context())

	expiresAt, err := parseExpiry(flags.expires, time.Local)
	if err != nil {
		return err
	}

	req := access.GrantRequest{
		TargetID:  flags.subject,
		Enabled:   enable,
		ExpiresAt: expiresAt,
		Note:      flags.note,
		CreatedBy: flags.by,
	}

	return withStore(cmd.Context(), cc, func(st *store.Store) error {
		admin := access.NewAdmin(st, cc.Logger)

		var (
			res *access.GrantResult
			err error
		)

		if flags.batch != 0 {
			req.TargetID = flags.batch
			res, err = admin.GrantBatch(cmd.Context(), req)
		} else {
			res, err = admin.GrantIndividual(cmd.Context(), req)
		}

		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), grantResultJSON{
				Grant:    toGrantJSON(res.Grant),
				Affected: res.Affected,
			})
		}

		state := "enabled"
		if !res.Grant.Enabled {
			state = "disabled"
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s grant for %d %s (%d participant(s) affected)\n",
			res.Grant.Scope, res.Grant.TargetID, state, res.Affected)

		return nil
	})
}

// parseExpiry accepts RFC 3339 or a bare date. Empty means never.
func parseExpiry(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}

	day, err := time.ParseInLocation(expiresDateLayout, s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid --expires %q: want RFC 3339 or YYYY-MM-DD", s)
	}

	end := day.AddDate(0, 0, 1).Add(-time.Second)

	return &end, nil
}

func newAccessLegacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "legacy <subject-id> on|off",
		Short:     "Turn a participant's legacy document access on or off",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			subjectID, err := parseID(args[0])
			if err != nil {
				return err
			}

			enabled, err := parseOnOff(args[1])
			if err != nil {
				return err
			}

			cc := mustCLIContext(cmd.Context())

			return withStore(cmd.Context(), cc, func(st *store.Store) error {
				if err := access.NewAdmin(st, cc.Logger).SetLegacyAccess(cmd.Context(), subjectID, enabled); err != nil {
					return err
				}

				cc.Statusf("Legacy access for participant %d set to %s\n", subjectID, args[1])

				return nil
			})
		},
	}
}

func newAccessListCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := parseScope(scope)
			if err != nil {
				return err
			}

			cc := mustCLIContext(cmd.Context())

			return withStore(cmd.Context(), cc, func(st *store.Store) error {
				grants, err := access.NewAdmin(st, cc.Logger).ListGrants(cmd.Context(), sc)
				if err != nil {
					return err
				}

				return printGrants(cmd.OutOrStdout(), grants, cc.Flags.JSON)
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "only grants of this scope (individual or group)")

	return cmd
}

type grantJSON struct {
	ID         string `json:"id"`
	Scope      string `json:"scope"`
	TargetID   int64  `json:"target_id"`
	Enabled    bool   `json:"enabled"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
	CreatedAt  string `json:"created_at"`
	ModifiedAt string `json:"modified_at"`
}

type grantResultJSON struct {
	Grant    grantJSON `json:"grant"`
	Affected int       `json:"affected"`
}

func toGrantJSON(g *store.Grant) grantJSON {
	out := grantJSON{
		ID:         g.ID,
		Scope:      string(g.Scope),
		TargetID:   g.TargetID,
		Enabled:    g.Enabled,
		Note:       g.Note,
		CreatedBy:  g.CreatedBy,
		CreatedAt:  g.CreatedAt.UTC().Format(timeFormatJSON),
		ModifiedAt: g.ModifiedAt.UTC().Format(timeFormatJSON),
	}

	if g.ExpiresAt != nil {
		out.ExpiresAt = g.ExpiresAt.UTC().Format(timeFormatJSON)
	}

	return out
}

func printGrants(w io.Writer, grants []store.Grant, asJSON bool) error {
	if asJSON {
		out := make([]grantJSON, 0, len(grants))
		for i := range grants {
			out = append(out, toGrantJSON(&grants[i]))
		}

		return printJSON(w, out)
	}

	if len(grants) == 0 {
		fmt.Fprintln(w, "No grants.")
		return nil
	}

	rows := make([][]string, 0, len(grants))

	for i := range grants {
		g := &grants[i]

		expires := "never"
		if g.ExpiresAt != nil {
			expires = formatTime(*g.ExpiresAt)
		}

		rows = append(rows, []string{
			string(g.Scope),
			strconv.FormatInt(g.TargetID, 10),
			strconv.FormatBool(g.Enabled),
			expires,
			g.CreatedBy,
			g.Note,
		})
	}

	printTable(w, []string{"SCOPE", "TARGET", "ENABLED", "EXPIRES", "BY", "NOTE"}, rows)

	return nil
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Administer participant batches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <batch-id>",
		Short: "Flip a batch's default access and apply it to its current members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := parseID(args[0])
			if err != nil {
				return err
			}

			cc := mustCLIContext(cmd.Context())

			return withStore(cmd.Context(), cc, func(st *store.Store) error {
				newDefault, affected, err := access.NewAdmin(st, cc.Logger).ToggleBatchDefault(cmd.Context(), batchID)
				if err != nil {
					return err
				}

				if cc.Flags.JSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"batch_id":       batchID,
						"default_access": newDefault,
						"affected":       affected,
					})
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Batch %d default access is now %t (%d member(s) updated)\n",
					batchID, newDefault, affected)

				return nil
			})
		},
	})

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: want a positive integer", s)
	}

	return id, nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state %q: want on or off", s)
	}
}

func parseScope(s string) (store.Scope, error) {
	switch store.Scope(s) {
	case "", store.ScopeIndividual, store.ScopeGroup:
		return store.Scope(s), nil
	default:
		return "", errors.New("invalid --scope: want individual or group")
	}
}
