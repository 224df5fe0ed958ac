package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"neurolink/internal/formstate"
	"neurolink/internal/location"
	"neurolink/internal/media"
	"neurolink/internal/submit"
	"neurolink/internal/validate"
	"neurolink/internal/wire"
	"neurolink/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var submitCommand = &cli.Command{
	Name:  "submit",
	Usage: "Validate and submit an intake form",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "JSON file holding the form fields",
		},
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "Set one field, e.g. --set symptoms.incontinence=true",
		},
		&cli.StringFlag{
			Name:  "image",
			Usage: "MRI photo to attach",
		},
		&cli.StringFlag{
			Name:  "video",
			Usage: "Seizure video to attach",
		},
		&cli.Float64Flag{
			Name:  "video-duration",
			Usage: "Video length in seconds, checked against the limit",
		},
		&cli.StringFlag{
			Name:  "variant",
			Usage: "Wire variant, web or mobile (defaults to WIRE_VARIANT)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Validate and print the payload without sending it",
		},
	},
	Action: submitForm,
}

func submitForm(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, false)

	sessions, err := sessionFile(cfg)
	if err != nil {
		return err
	}

	state, err := readFormState(c.String("file"))
	if err != nil {
		return err
	}

	policy, err := formstate.ParsePolicy(cfg.CityPolicy)
	if err != nil {
		return err
	}

	resolver := location.NewResolver(cfg.BackendURL, logger,
		location.WithFallback(cfg.LocationFallback),
		location.WithSession(sessions),
	)

	st := formstate.New(resolver, logger, formstate.WithState(state), formstate.WithPolicy(policy), formstate.WithContext(ctx))

	if err := applySets(ctx, st, c.StringSlice("set")); err != nil {
		return err
	}

	if err := attach(st, media.KindImage, c.String("image"), 0); err != nil {
		return err
	}
	if err := attach(st, media.KindVideo, c.String("video"), c.Float64("video-duration")); err != nil {
		return err
	}

	variant := wire.ParseVariant(cfg.WireVariant)
	if v := c.String("variant"); v != "" {
		variant = wire.ParseVariant(v)
	}

	if c.Bool("dry-run") {
		if messages := validate.Validate(st.Get()); len(messages) > 0 {
			printMessages(messages)
			return cli.Exit("form is incomplete", 1)
		}
		_, err := pp.Println(wire.ToWireFormat(st.Get(), variant))
		return err
	}

	transport := submit.NewTransport(cfg.BackendURL, sessions, media.SchemeOpener{}, submitPolicy(cfg), logger)
	pipeline := submit.NewPipeline(st, transport, variant, logger)

	outcome, err := pipeline.Submit(ctx)
	if err != nil {
		if outcome != nil {
			printMessages(outcome.Messages)
		}
		return cli.Exit(submit.UserMessage(err), 1)
	}

	logger.WithFields(logrus.Fields{
		"status":  outcome.Result.Status,
		"form_id": outcome.Result.FormID,
	}).Debug("submission finished")

	if outcome.Result.FormID != "" {
		fmt.Printf("Form submitted, id %s\n", outcome.Result.FormID)
	} else {
		fmt.Println("Form submitted")
	}

	return nil
}

func readFormState(path string) (types.FormState, error) {
	var state types.FormState
	if path == "" {
		return state, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("read form file: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("decode form file %s: %w", path, err)
	}

	return state, nil
}

// applySets applies name=value pairs in order. A region change waits for
// its city list before the next pair.
func applySets(ctx context.Context, st *formstate.Store, sets []string) error {
	for _, set := range sets {
		name, value, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("--set %q: expected name=value", set)
		}
		name = strings.TrimSpace(name)

		if name == "regionId" {
			if fetch := st.SetRegion(ctx, value); fetch != nil {
				if err := fetch.Wait(ctx); err != nil {
					return err
				}
			}
			continue
		}

		if err := st.SetField(name, value); err != nil {
			if errors.Is(err, formstate.ErrUnknownField) || errors.Is(err, formstate.ErrInvalidValue) || errors.Is(err, formstate.ErrCityNeedsRegion) {
				return cli.Exit(err.Error(), 1)
			}
			return err
		}
	}

	return nil
}

func attach(st *formstate.Store, kind media.Kind, path string, duration float64) error {
	if path == "" {
		return nil
	}

	sel, err := media.SelectFile(path)
	if err != nil {
		return err
	}
	sel.Duration = duration

	var setErr error
	err = media.HandlePick(&sel, kind, func(a *types.Attachment) {
		setErr = st.SetAttachment(kind, a)
	})

	var constraintErr *media.ConstraintError
	if errors.As(err, &constraintErr) {
		return cli.Exit(constraintErr.Message, 1)
	}
	if err != nil {
		return err
	}

	return setErr
}

func printMessages(messages []string) {
	for _, m := range messages {
		fmt.Fprintln(os.Stderr, "  - "+m)
	}
}
