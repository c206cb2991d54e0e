package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"violin-coach-service/internal/app"
	"violin-coach-service/internal/catalog"
	"violin-coach-service/internal/config"
	"violin-coach-service/internal/service/pitch"
	pitchmock "violin-coach-service/internal/service/pitch/mock"
	"violin-coach-service/internal/service/pose"
	posemock "violin-coach-service/internal/service/pose/mock"
)

// stepsPerBow is the number of synthesized frames per bow stroke, enough
// for the classifier to commit each direction partway through the stroke.
const stepsPerBow = 5

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic practice session through the full pipeline",
		Long: `Drive the pipeline with mock pose and pitch collaborators: calibrate
from a canonical posture frame, play the chosen piece's bow pattern and
note sequence, and print the scored session summary.

Example:
  violin-coach simulate --piece "Open String Cycle" --frames-hz 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pieceName, _ := cmd.Flags().GetString("piece")
			user, _ := cmd.Flags().GetString("user")
			framesHz, _ := cmd.Flags().GetInt("frames-hz")
			if framesHz <= 0 {
				return fmt.Errorf("frames-hz must be positive")
			}

			cfg := config.Load()
			// Simulation is self-contained: in-memory store, log-only
			// publisher, console output on stdout instead of log lines.
			cfg.Storage.Enabled = false
			cfg.Kafka.Enabled = false
			cfg.Observability.LogLevel = "warn"

			application, err := app.New(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			ref := posemock.ReferenceFrame()
			profile, _, err := application.SaveCalibration(ctx, user, "simulated", &ref)
			if err != nil {
				return fmt.Errorf("calibration failed: %w", err)
			}
			fmt.Printf("Calibrated posture profile %q for %s\n", profile.Name, user)

			row, err := application.StartSession(ctx, user, pieceName)
			if err != nil {
				return err
			}

			piece, err := application.Catalog.Get(row.PieceName)
			if err != nil {
				return err
			}

			frameInterval := time.Second / time.Duration(framesHz)
			noteInterval := stepsPerBow * frameInterval
			angles := posemock.AnglesForPattern(piece.BowPattern, 90, stepsPerBow)

			source := posemock.NewSource(posemock.Config{
				Interval: frameInterval,
				Angles:   angles,
			})
			detector := pitchmock.NewDetector(pitchmock.Config{
				Notes:    piece.Notes,
				Interval: noteInterval,
			})

			relay := &sessionRelay{app: application, sessionID: row.ID}
			if err := source.Start(ctx, relay); err != nil {
				return err
			}
			if err := detector.Start(ctx, relay); err != nil {
				return err
			}

			fmt.Printf("Session %s: %q, %d strokes, %d frames at %d Hz\n",
				row.ID, piece.Name, len(piece.BowPattern), len(angles), framesHz)

			frameTime := time.Duration(len(angles)) * frameInterval
			noteTime := time.Duration(len(piece.Notes)) * noteInterval
			runFor := frameTime
			if noteTime > runFor {
				runFor = noteTime
			}
			runFor += 500 * time.Millisecond

			deadline := time.After(runFor)
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()

		poll:
			for {
				select {
				case <-ctx.Done():
					break poll
				case <-deadline:
					break poll
				case <-ticker.C:
					snap, err := application.SessionSnapshot(ctx, row.ID)
					if err != nil {
						continue
					}
					posture := string(snap.LastPosture)
					if posture == "" {
						posture = "-"
					}
					fmt.Printf("  bow=%-8s posture=%-9s rhythm=%-6s notes=%-3d events=%d\n",
						snap.LastDirection, posture, snap.Rhythm.PositionLabel,
						snap.NoteCount, snap.EventCount)
				}
			}

			_ = source.Stop()
			_ = detector.Stop()

			summary, err := application.EndSession(ctx, row.ID)
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Println("Session summary:")
			fmt.Printf("  Session:   %s\n", summary.SessionID)
			fmt.Printf("  Piece:     %s\n", summary.PieceName)
			fmt.Printf("  Duration:  %.1fs\n", summary.DurationSeconds)
			fmt.Printf("  Notes:     %d\n", summary.NoteCount)
			fmt.Printf("  Events:    %d\n", summary.EventCount)
			printScore("Posture", summary.PostureScore)
			printScore("Bow sync", summary.BowDirectionAccuracy)
			printScore("Rhythm", summary.RhythmScore)
			printScore("Overall", summary.OverallScore)

			return nil
		},
	}

	cmd.Flags().String("piece", catalog.DefaultPieceName, "Piece to simulate")
	cmd.Flags().String("user", "student", "User to practice as")
	cmd.Flags().Int("frames-hz", 20, "Pose frame rate")

	return cmd
}

// sessionRelay feeds mock collaborator output into the running session. It
// satisfies both the pose and pitch callback interfaces.
type sessionRelay struct {
	app       *app.Application
	sessionID string
}

func (r *sessionRelay) OnFrame(frame pose.Frame) {
	if _, err := r.app.ProcessFrame(context.Background(), r.sessionID, &frame); err != nil {
		fmt.Fprintf(os.Stderr, "frame rejected: %v\n", err)
	}
}

func (r *sessionRelay) OnNote(note pitch.NoteEvent) {
	if _, err := r.app.ProcessNote(context.Background(), r.sessionID, note); err != nil {
		fmt.Fprintf(os.Stderr, "note rejected: %v\n", err)
	}
}

func (r *sessionRelay) OnError(err error) {
	fmt.Fprintf(os.Stderr, "collaborator error: %v\n", err)
}

func printScore(label string, score *float64) {
	if score == nil {
		fmt.Printf("  %-10s not scored\n", label+":")
		return
	}
	fmt.Printf("  %-10s %.2f\n", label+":", *score)
}
