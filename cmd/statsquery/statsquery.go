package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/statsview/pkg/geom"
	"github.com/cyclopcam/statsview/pkg/playlistdb"
	"github.com/cyclopcam/statsview/pkg/stats"
	"github.com/cyclopcam/statsview/pkg/statsfile"
	"github.com/cyclopcam/statsview/pkg/statsload"
	"gopkg.in/yaml.v3"
)

// Query the statistics of a frame at a pixel position, the same way the viewer does on mouse hover

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("statsquery", "Show the statistics at a position in a frame")
	input := parser.String("i", "input", &argparse.Options{Help: "Statistics dump (JSON)", Required: true})
	frame := parser.Int("f", "frame", &argparse.Options{Help: "Frame index", Default: 0})
	x := parser.Int("x", "x", &argparse.Options{Help: "X coordinate, in pixels", Default: 0})
	y := parser.Int("y", "y", &argparse.Options{Help: "Y coordinate, in pixels", Default: 0})
	render := parser.String("r", "render", &argparse.Options{Help: "Comma-separated list of type names to render. Default is whatever the dump or playlist says."})
	dbFile := parser.String("", "db", &argparse.Options{Help: "Playlist DB, for loading and saving render settings"})
	save := parser.Flag("", "save", &argparse.Options{Help: "Save the render settings to the playlist DB"})
	summary := parser.Flag("s", "summary", &argparse.Options{Help: "Print a summary of every loaded type"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)
	defer logger.Close()

	file, err := statsfile.Open(*input)
	check(err)

	data := stats.NewStatisticsData(logger)
	file.RegisterTypes(data)

	var db *playlistdb.PlaylistDB
	if *dbFile != "" {
		db, err = playlistdb.Open(logger, *dbFile)
		check(err)
		defer db.Close()
		doc, err := db.Load(*input)
		if err == nil {
			check(data.LoadPlaylist(doc))
		} else if err != playlistdb.ErrNotFound {
			check(err)
		}
	}

	if *render != "" {
		check(applyRenderList(data, strings.Split(*render, ",")))
	}

	pos := geom.Point{X: *x, Y: *y}
	if size := data.FrameSize(); !size.IsEmpty() && !size.Contains(pos) {
		fmt.Fprintf(os.Stderr, "Position %v,%v is outside the %vx%v frame\n", pos.X, pos.Y, size.Width, size.Height)
		os.Exit(1)
	}

	loader := statsload.NewLoader(logger, data, file, statsload.DefaultSettings())
	check(loader.LoadFrame(context.Background(), *frame))
	loader.Close()

	for _, v := range data.ValuesAt(pos) {
		fmt.Printf("%-20v %v\n", v.Label, v.Text)
	}

	if *summary {
		printSummary(data)
	}

	if *save {
		if db == nil {
			fmt.Fprintf(os.Stderr, "--save requires --db\n")
			os.Exit(1)
		}
		doc := &yaml.Node{}
		check(data.SavePlaylist(doc))
		check(db.Save(*input, doc))
	}
}

// Render exactly the named types
func applyRenderList(data *stats.StatisticsData, names []string) error {
	want := map[string]bool{}
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	for _, t := range data.Types.Types() {
		data.Types.SetRender(t.TypeID, want[t.TypeName])
		delete(want, t.TypeName)
	}
	for n := range want {
		return fmt.Errorf("Unknown statistics type '%v'", n)
	}
	return nil
}

func printSummary(data *stats.StatisticsData) {
	fmt.Printf("\nFrame %v\n", data.FrameIndex())
	for _, t := range data.Types.Types() {
		if !t.Render {
			continue
		}
		sum := data.Summary(t.TypeID)
		fmt.Printf("%3v %-20v shapes:%-6v", t.TypeID, t.TypeName, sum.NumShapes)
		if sum.ValueModeN != 0 {
			fmt.Printf(" mean:%-8.2f stddev:%-8.2f mode:%v (%v)", sum.ValueMean, math.Sqrt(sum.ValueVariance), t.ValueText(sum.ValueMode), sum.ValueModeN)
		}
		if sum.MaxVector != 0 {
			fmt.Printf(" max vector:%.2f", sum.MaxVector)
		}
		fmt.Printf("\n")
	}
}
