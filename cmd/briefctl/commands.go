package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"casebrief-backend/llm"
	"casebrief-backend/models"
	"casebrief-backend/repository"
	"casebrief-backend/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// app holds what every subcommand needs
type app struct {
	store    repository.Store
	briefs   *service.BriefService
	verifier *service.BriefVerifier
	sweeper  *service.Sweeper
	batch    int
	closers  []func()
}

func newApp(store repository.Store, client llm.CompletionClient, settings service.CompletionSettings, opts ...service.BriefServiceOption) *app {
	verifier := service.NewBriefVerifier(client, settings)
	base := []service.BriefServiceOption{
		service.BriefWithCaseStore(store),
		service.BriefWithGenerator(service.NewBriefGenerator(client, settings)),
		service.BriefWithVerifier(verifier),
	}
	briefs := service.NewBriefService(append(base, opts...)...)

	return &app{
		store:    store,
		briefs:   briefs,
		verifier: verifier,
		sweeper: service.NewSweeper(
			service.SweepWithCaseStore(store),
			service.SweepWithBriefService(briefs),
		),
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		c()
	}
	a.store.Close()
}

type appFactory func(ctx context.Context) (*app, error)

var errUnresolved = errors.New("brief not verified")

func newRootCmd(open appFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "briefctl",
		Short:         "Generate, verify and sweep case briefs against the configured store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newResolveCmd(open), newVerifyCmd(open), newSweepCmd(open))
	return root
}

func slotFlag(cmd *cobra.Command) (models.Slot, error) {
	raw, _ := cmd.Flags().GetString("slot")
	return models.ParseSlot(raw)
}

func parseCaseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid case id %q: %w", arg, err)
	}
	return id, nil
}

func newResolveCmd(open appFactory) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "resolve <caseId>",
		Short: "Resolve a verified brief for a case, printing progress as it happens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			slot, err := slotFlag(cmd)
			if err != nil {
				return err
			}
			intent := models.IntentReuseIfPresent
			if force {
				intent = models.IntentForceRegenerate
			}

			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			res, err := a.briefs.Resolve(cmd.Context(), service.ResolveRequest{
				CaseID:   id,
				Slot:     slot,
				Intent:   intent,
				Observer: func(e service.Event) { printEvent(out, e) },
			})
			if err != nil {
				return err
			}
			if res.Summary != nil {
				printSummary(out, *res.Summary)
			}
			if res.State != service.StateVerified {
				return fmt.Errorf("%w after %d attempt(s)", errUnresolved, res.Attempts)
			}
			return nil
		},
	}
	cmd.Flags().String("slot", string(models.SlotBrief), "brief or detailed")
	cmd.Flags().BoolVar(&force, "force", false, "regenerate even if a verified brief is stored")
	return cmd
}

func newVerifyCmd(open appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <caseId>",
		Short: "Judge the stored brief without changing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			slot, err := slotFlag(cmd)
			if err != nil {
				return err
			}

			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.store.GetCase(cmd.Context(), id)
			if err != nil {
				return err
			}
			summary := c.Summary(slot)
			if summary == nil {
				return fmt.Errorf("case %s has no %s brief", id, slot)
			}

			verdict, verr := a.verifier.Verify(cmd.Context(), *summary, c.Meta())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "verified: %t\n", verdict.Verified)
			if verdict.Explanation != "" {
				fmt.Fprintf(out, "explanation: %s\n", verdict.Explanation)
			}
			if cor := verdict.Corrections; cor != nil {
				fmt.Fprintf(out, "corrections: title=%q citation=%q date=%q\n", cor.Title, cor.Citation, cor.Date)
			}
			return verr
		},
	}
	cmd.Flags().String("slot", string(models.SlotBrief), "brief or detailed")
	return cmd
}

func newSweepCmd(open appFactory) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-resolve stored briefs that are not verified",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := slotFlag(cmd)
			if err != nil {
				return err
			}

			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if batch <= 0 {
				batch = a.batch
			}
			report, err := a.sweeper.Sweep(cmd.Context(), slot, batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d verified=%d exhausted=%d failed=%d\n",
				report.Scanned, report.Verified, report.Exhausted, report.Failed)
			return nil
		},
	}
	cmd.Flags().String("slot", string(models.SlotBrief), "brief or detailed")
	cmd.Flags().IntVar(&batch, "batch", 0, "maximum cases to resolve (default from SWEEP_BATCH)")
	return cmd
}

func printEvent(w io.Writer, e service.Event) {
	switch e.Kind {
	case service.EventState:
		fmt.Fprintf(w, "[%s] attempt %d\n", e.State, e.Attempt)
	case service.EventDraft:
		fmt.Fprintf(w, "[draft] unverified brief available (attempt %d)\n", e.Attempt)
	case service.EventFinal:
		if e.Err != nil {
			fmt.Fprintf(w, "[final] %s: %v\n", e.State, e.Err)
		}
	}
}

func printSummary(w io.Writer, s models.BriefSummary) {
	label := "VERIFIED"
	if !s.Verified {
		label = "UNVERIFIED"
	}
	fmt.Fprintf(w, "\n%s\n", label)
	for _, f := range models.BriefFields {
		v := s.Fields()[f]
		if strings.TrimSpace(v) == "" {
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", f, v)
	}
}
