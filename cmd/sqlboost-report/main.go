package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"sqlboost/internal/scorecard"
	"sqlboost/internal/util"
)

func main() {
	dir := flag.String("dir", "reports", "report directory to scan")
	topN := flag.Int("top", 10, "number of winners to list")
	asJSON := flag.Bool("json", false, "emit the scorecard as JSON")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	summaries, err := scorecard.LoadSummaries(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load case summaries: %v\n", err)
		os.Exit(1)
	}
	if len(summaries) == 0 {
		fmt.Fprintf(os.Stderr, "no case summaries under %s\n", *dir)
		os.Exit(1)
	}
	util.Infof("loaded %d case summarie(s) from %s", len(summaries), *dir)

	sc := scorecard.FromSummaries(summaries, *topN)
	if *asJSON {
		data, err := sc.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}
	fmt.Println(sc.Markdown())
}
