package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/forensics-shadow/internal/forensics/api"
	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
	progress "github.com/sawpanic/forensics-shadow/internal/log"
)

// signalInput is the wire-level shape accepted from an input file: a
// weakly typed bag of fields, mapped onto domain.RawSignal before
// validation.
type signalInput struct {
	SourceID    string   `json:"source_id"`
	Region      string   `json:"region"`
	Domain      string   `json:"domain"`
	SignalType  string   `json:"signal_type"`
	Value       *float64 `json:"value"`
	Confidence  *float64 `json:"confidence"`
	ObservedAt  int64    `json:"observed_at"`
	EvidenceIDs []string `json:"evidence_ids"`
}

func (si signalInput) toRawSignal() domain.RawSignal {
	raw := domain.RawSignal{
		SourceID:    si.SourceID,
		Region:      si.Region,
		Domain:      si.Domain,
		SignalType:  si.SignalType,
		ObservedAt:  si.ObservedAt,
		EvidenceIDs: si.EvidenceIDs,
	}
	if si.Value != nil {
		raw.Value = *si.Value
		raw.HasValue = true
	}
	if si.Confidence != nil {
		raw.Confidence = *si.Confidence
		raw.HasConf = true
	}
	return raw
}

func newRunCmd() *cobra.Command {
	var (
		domainFlag string
		inputPath  string
		alpha      float64
		noPersist  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one forensics shadow pass over a signal batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()
			if err != nil {
				return err
			}

			raw, err := readSignals(inputPath)
			if err != nil {
				return err
			}

			var indicator *progress.ProgressIndicator
			if term.IsTerminal(int(os.Stderr.Fd())) {
				indicator = progress.NewProgressIndicator(
					fmt.Sprintf("forensics shadow run (%s)", domainFlag),
					1,
					progress.DefaultProgressConfig(),
				)
			}

			result, err := svc.RunForensicsShadow(context.Background(), api.RunForensicsShadowRequest{
				Domain:  domainFlag,
				Signals: raw,
				Alpha:   alpha,
				Persist: !noPersist,
			})
			if indicator != nil {
				if err != nil {
					indicator.Fail(err.Error())
				} else {
					indicator.FinishWithMessage(fmt.Sprintf(
						"%d fused, %d anomalies, %d causal edges",
						len(result.FusedSignals), len(result.Anomalies), len(result.CausalEdges),
					))
				}
			}
			if err != nil {
				return err
			}

			log.Info().
				Str("run_id", result.Run.RunID).
				Str("status", string(result.Run.Status)).
				Int("fused", len(result.FusedSignals)).
				Int("anomalies", len(result.Anomalies)).
				Int("causal_edges", len(result.CausalEdges)).
				Msg("forensics run complete")

			for _, entry := range result.Trace {
				log.Debug().
					Str("phase", entry.Phase).
					Str("status", string(entry.Status)).
					Int64("elapsed_ms", entry.ElapsedMs).
					Strs("parents", entry.ParentPhases).
					Msg("phase trace entry")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&domainFlag, "domain", "infrastructure", "request domain for signals missing one")
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a JSON array of signals (stdin when omitted)")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.05, "conformal significance level")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "skip persisting the run through the blackboard")

	return cmd
}

func readSignals(path string) ([]domain.RawSignal, error) {
	var buf []byte
	var err error
	if path == "" {
		buf, err = io.ReadAll(os.Stdin)
	} else {
		buf, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read signal input: %w", err)
	}

	var inputs []signalInput
	if err := json.Unmarshal(buf, &inputs); err != nil {
		return nil, fmt.Errorf("decode signal input: %w", err)
	}

	out := make([]domain.RawSignal, 0, len(inputs))
	for _, si := range inputs {
		out = append(out, si.toRawSignal())
	}
	return out, nil
}
