package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Sundae2608/BattleSimulation-sub001/internal/battle"
)

type reportConfig struct {
	runs       int
	ticks      int
	seedBase   int64
	seedStep   int64
	scenario   string
	statsPath  string
	framesPath string
	frameEvery int
	workers    int
	clipboard  bool
	verbose    bool
}

type runStats struct {
	runIndex int
	runID    string
	seed     int64
	ticks    int

	firstShotTick  int
	firstHitTick   int
	firstKillTick  int
	firstDeathTick int
	firstRoutTick  int

	shots      int
	hits       int
	meleeKills int
	deaths     int
	routs      int
	moves      int

	redTotal      int
	blueTotal     int
	redSurvivors  int
	blueSurvivors int

	outcome battle.BattleOutcomeReason
	summary string
}

func main() {
	var rc reportConfig
	flag.IntVar(&rc.runs, "runs", 5, "number of headless battle runs")
	flag.IntVar(&rc.ticks, "ticks", 3600, "max ticks per run")
	flag.Int64Var(&rc.seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&rc.seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&rc.scenario, "scenario", "skirmish", "scenario name ("+strings.Join(battle.ScenarioNames(), ", ")+")")
	flag.StringVar(&rc.statsPath, "stats", "", "YAML unit stats file (default: built-in table)")
	flag.StringVar(&rc.framesPath, "frames", "", "write msgpack frames of run 1 to this file")
	flag.IntVar(&rc.frameEvery, "frame-every", 1, "record one frame every N ticks")
	flag.IntVar(&rc.workers, "workers", 0, "goroutines for the parallel phases (0: GOMAXPROCS)")
	flag.BoolVar(&rc.clipboard, "clipboard", false, "copy the report to the clipboard")
	flag.BoolVar(&rc.verbose, "v", false, "debug logging")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "battle-report"})
	if rc.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	var sb strings.Builder
	out := io.MultiWriter(os.Stdout, &sb)
	if err := runReport(context.Background(), rc, logger, out); err != nil {
		logger.Fatal("report failed", "err", err)
	}
	if rc.clipboard {
		if err := clipboard.WriteAll(sb.String()); err != nil {
			logger.Warn("clipboard copy failed", "err", err)
		} else {
			logger.Info("report copied to clipboard")
		}
	}
}

func (rc reportConfig) validate() error {
	if rc.runs <= 0 {
		return fmt.Errorf("-runs must be > 0")
	}
	if rc.ticks <= 0 {
		return fmt.Errorf("-ticks must be > 0")
	}
	if rc.frameEvery <= 0 {
		return fmt.Errorf("-frame-every must be > 0")
	}
	return nil
}

func runReport(ctx context.Context, rc reportConfig, logger *log.Logger, w io.Writer) error {
	if err := rc.validate(); err != nil {
		return err
	}
	base, err := battle.Scenario(rc.scenario)
	if err != nil {
		return err
	}
	var stats battle.StatsProvider
	if rc.statsPath != "" {
		f, err := os.Open(rc.statsPath)
		if err != nil {
			return err
		}
		stats, err = battle.LoadStats(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "=== Headless Battle Report ===\n")
	fmt.Fprintf(w, "scenario=%s runs=%d ticks=%d seed_base=%d seed_step=%d\n\n",
		rc.scenario, rc.runs, rc.ticks, rc.seedBase, rc.seedStep)

	all := make([]runStats, 0, rc.runs)
	for i := 0; i < rc.runs; i++ {
		seed := rc.seedBase + int64(i)*rc.seedStep
		opts := append([]battle.ScenarioOption{
			battle.WithScenarioSeed(seed),
			battle.WithScenarioLogger(logger.With("run", i+1)),
		}, base...)
		if rc.workers > 0 {
			opts = append(opts, battle.WithWorkers(rc.workers))
		}
		if stats != nil {
			opts = append(opts, battle.WithScenarioStats(stats))
		}
		var frames io.Writer
		if i == 0 && rc.framesPath != "" {
			f, err := os.Create(rc.framesPath)
			if err != nil {
				return err
			}
			defer f.Close()
			frames = f
		}
		rs, err := runScenario(ctx, i+1, seed, rc, opts, frames)
		if err != nil {
			return fmt.Errorf("run %d: %w", i+1, err)
		}
		all = append(all, rs)
		printRun(w, rs)
	}
	printAggregate(w, all)
	return nil
}

func runScenario(ctx context.Context, runIndex int, seed int64, rc reportConfig, opts []battle.ScenarioOption, frames io.Writer) (runStats, error) {
	tb, err := battle.NewTestBattle(opts...)
	if err != nil {
		return runStats{}, err
	}
	var fw *battle.FrameWriter
	if frames != nil {
		fw = battle.NewFrameWriter(frames)
		if err := fw.Write(tb.Battle.Snapshot()); err != nil {
			return runStats{}, err
		}
	}
	for i := 0; i < rc.ticks; i++ {
		if err := tb.Battle.Step(ctx); err != nil {
			return runStats{}, err
		}
		if fw != nil && tb.Battle.Tick()%rc.frameEvery == 0 {
			if err := fw.Write(tb.Battle.Snapshot()); err != nil {
				return runStats{}, err
			}
		}
		if tb.Battle.Outcome().Decided() {
			break
		}
	}

	rs := collectStats(tb.Log.Entries())
	rs.runIndex = runIndex
	rs.runID = uuid.NewString()
	rs.seed = seed
	rs.ticks = tb.Battle.Tick()
	rs.outcome = tb.Battle.Outcome()
	rs.redTotal, rs.redSurvivors = rs.outcome.Red.Total, rs.outcome.Red.Survivors
	rs.blueTotal, rs.blueSurvivors = rs.outcome.Blue.Total, rs.outcome.Blue.Survivors
	rs.summary = battle.Summary(tb.Battle.Tick(), tb.Battle.Units())
	return rs, nil
}

// collectStats counts the events of one run.
func collectStats(entries []battle.Event) runStats {
	rs := runStats{
		firstShotTick:  firstTick(entries, "fire", "shot", ""),
		firstHitTick:   firstTick(entries, "fire", "hit", ""),
		firstKillTick:  firstTick(entries, "melee", "kill", ""),
		firstDeathTick: firstTick(entries, "death", "troop_dead", ""),
		firstRoutTick:  firstTick(entries, "unit", "state_change", "→ routing"),
	}
	for _, e := range entries {
		switch e.Category {
		case "fire":
			switch e.Key {
			case "shot":
				rs.shots++
			case "hit":
				rs.hits++
			}
		case "melee":
			if e.Key == "kill" {
				rs.meleeKills++
			}
		case "death":
			rs.deaths++
		case "unit":
			if e.Key == "state_change" && strings.HasSuffix(e.Value, "→ routing") {
				rs.routs++
			}
		case "tactics":
			if e.Key == "move" {
				rs.moves++
			}
		}
	}
	return rs
}

func firstTick(entries []battle.Event, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

// detectStalemate flags runs where both sides kept most of their troops and
// nobody broke.
func detectStalemate(rs runStats) (bool, string) {
	if rs.redTotal == 0 || rs.blueTotal == 0 {
		return false, "missing_side"
	}
	redSurv := float64(rs.redSurvivors) / float64(rs.redTotal)
	blueSurv := float64(rs.blueSurvivors) / float64(rs.blueTotal)
	if rs.routs > 0 {
		return false, "rout_occurred"
	}
	if redSurv < 0.5 || blueSurv < 0.5 {
		return false, "decisive_attrition"
	}
	if rs.deaths == 0 && rs.shots == 0 {
		return true, "no_engagement"
	}
	return true, fmt.Sprintf("high_mutual_survival red=%.2f blue=%.2f", redSurv, blueSurv)
}

func printRun(w io.Writer, rs runStats) {
	fmt.Fprintf(w, "--- Run %d (seed=%d id=%s) ---\n", rs.runIndex, rs.seed, rs.runID)
	fmt.Fprintf(w, "phase_markers: first_shot=%d first_hit=%d first_kill=%d first_death=%d first_rout=%d\n",
		rs.firstShotTick, rs.firstHitTick, rs.firstKillTick, rs.firstDeathTick, rs.firstRoutTick)
	fmt.Fprintf(w, "event_totals: shots=%d hits=%d melee_kills=%d deaths=%d routs=%d ai_moves=%d\n",
		rs.shots, rs.hits, rs.meleeKills, rs.deaths, rs.routs, rs.moves)
	fmt.Fprintf(w, "outcome: %s (%s) after %d ticks  red=%d/%d blue=%d/%d\n",
		rs.outcome.Outcome, rs.outcome.Description, rs.ticks,
		rs.redSurvivors, rs.redTotal, rs.blueSurvivors, rs.blueTotal)
	if stale, reason := detectStalemate(rs); stale {
		fmt.Fprintf(w, "stalemate: %s\n", reason)
	}
	fmt.Fprint(w, rs.summary)
	fmt.Fprintln(w)
}

func printAggregate(w io.Writer, all []runStats) {
	var shots, hits, kills, deaths, routs, stalemates int
	var deathTicks, routTicks []int
	outcomes := map[string]int{}
	for _, rs := range all {
		shots += rs.shots
		hits += rs.hits
		kills += rs.meleeKills
		deaths += rs.deaths
		routs += rs.routs
		if rs.firstDeathTick >= 0 {
			deathTicks = append(deathTicks, rs.firstDeathTick)
		}
		if rs.firstRoutTick >= 0 {
			routTicks = append(routTicks, rs.firstRoutTick)
		}
		outcomes[rs.outcome.Outcome.String()]++
		if stale, _ := detectStalemate(rs); stale {
			stalemates++
		}
	}

	fmt.Fprintln(w, "=== Aggregate ===")
	fmt.Fprintf(w, "runs=%d stalemates=%d\n", len(all), stalemates)
	fmt.Fprintf(w, "avg_events_per_run: shots=%.1f hits=%.1f melee_kills=%.1f deaths=%.1f routs=%.1f\n",
		avg(shots, len(all)), avg(hits, len(all)), avg(kills, len(all)), avg(deaths, len(all)), avg(routs, len(all)))
	fmt.Fprintf(w, "hit_rate=%s\n", ratioString(hits, shots))
	fmt.Fprintf(w, "phase_marker_avg_ticks: first_death=%s first_rout=%s\n",
		avgTickString(deathTicks), avgTickString(routTicks))
	fmt.Fprintf(w, "outcomes: %s\n", joinCounts(outcomes))
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func ratioString(num, den int) string {
	if den == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", float64(num)/float64(den))
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func joinCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
