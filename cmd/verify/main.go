// Command verify checks fairness evidence offline: a game submission, a
// revealed purpose log, a single draw, or a record from the archive.
//
//	verify submission -game blackjack -file game.json -reveal reveal.json
//	verify reveal -file reveal.json
//	verify draw -secret <hex> -empty 0,3,7 < draw.json
//	verify record -id <record id>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"fairplay/config"
	"fairplay/db"
	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/verdict"
)

// Exit codes.
const (
	exitValid   = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: verify <submission|reveal|draw|record|games> [flags]")
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	if len(args) == 0 {
		usage(os.Stderr)
		return exitUsage
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	file := fs.String("file", "-", "input file (- for stdin)")

	switch cmd {
	case "games":
		for _, g := range replay.Games() {
			fmt.Fprintln(stdout, g)
		}
		return exitValid

	case "submission":
		game := fs.String("game", "", "game name ("+strings.Join(replay.Games(), ", ")+")")
		revealFile := fs.String("reveal", "", "revealed session the random history was drawn in")
		if fs.Parse(args) != nil {
			return exitUsage
		}
		raw, err := readInput(*file, stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsage
		}
		var session *fairness.Reveal
		if *revealFile != "" {
			var r fairness.Reveal
			if err := decodeInput(*revealFile, stdin, &r); err != nil {
				return report(stdout, verdict.Fail(err))
			}
			if err := fairness.VerifyLog(r); err != nil {
				return report(stdout, verdict.Fail(err))
			}
			session = &r
		}
		return report(stdout, replay.Validate(*game, raw, session))

	case "reveal":
		if fs.Parse(args) != nil {
			return exitUsage
		}
		var r fairness.Reveal
		if err := decodeInput(*file, stdin, &r); err != nil {
			return report(stdout, verdict.Fail(err))
		}
		return report(stdout, verdict.From(0, fairness.VerifyLog(r)))

	case "draw":
		secret := fs.String("secret", "", "revealed session secret (omit to check the expansion only)")
		empty := fs.String("empty", "", "comma separated empty cells for spawn draws")
		if fs.Parse(args) != nil {
			return exitUsage
		}
		cells, err := parseCells(*empty)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsage
		}
		var d replay.Draw
		if err := decodeInput(*file, stdin, &d); err != nil {
			return report(stdout, verdict.Fail(err))
		}
		return report(stdout, verdict.From(0, replay.VerifyDraw(*secret, d, cells)))

	case "record":
		id := fs.String("id", "", "archived record id")
		if fs.Parse(args) != nil || *id == "" {
			fs.Usage()
			return exitUsage
		}
		return verifyRecord(ctx, *id, stdout)
	}

	usage(os.Stderr)
	return exitUsage
}

// verifyRecord replays an archived submission and checks the stored verdict
// still holds.
func verifyRecord(ctx context.Context, id string, stdout io.Writer) int {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	var store replay.RecordStore
	if cfg.DatabaseURL != "" {
		pg, err := db.InitPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsage
		}
		defer pg.Close()
		store = pg
	} else {
		bs, err := db.OpenBolt(cfg.BoltPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsage
		}
		defer bs.Close()
		store = bs
	}

	rec, err := store.LoadRecord(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	v := replay.Validate(rec.Game, rec.Submission, rec.Session)
	if !reflect.DeepEqual(v, rec.Verdict) {
		log.WithFields(log.Fields{
			"record": id,
			"stored": rec.Verdict.Kind,
			"now":    v.Kind,
		}).Warn("Archived verdict no longer reproduces")
		fmt.Fprintf(os.Stderr, "stored verdict differs from replay\n")
		report(stdout, v)
		return exitInvalid
	}
	return report(stdout, v)
}

func report(w io.Writer, v verdict.Verdict) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
	if v.Valid {
		return exitValid
	}
	return exitInvalid
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(stdin, config.MaxRequestBytes))
	}
	return os.ReadFile(path)
}

func decodeInput(path string, stdin io.Reader, v any) error {
	raw, err := readInput(path, stdin)
	if err != nil {
		return verdict.Wrap(verdict.KindStructuralError, err, "read input")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return verdict.Wrap(verdict.KindStructuralError, err, "decode input")
	}
	return nil
}

func parseCells(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var cells []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad cell %q", part)
		}
		cells = append(cells, n)
	}
	return cells, nil
}
