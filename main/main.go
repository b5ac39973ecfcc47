/*fieldsim runs electromagnetic studies from configuration files.

	fieldsim -Study cavity.cfg
	fieldsim -ExampleConfig > study.cfg

A study file describes the scene meshes, the excitation, and the field
monitors; results are written to the study's output directory as binary
series and spectrum records.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/mittens-cad/fieldsim"
)

const exampleConfig = `[Study]
Name = cavity
# Cell edge length in meters.
CellSize = 0.005
# Excitation band center and width in Hz.
Fcen = 1e9
Fwidth = 5e8
# Leave Duration and Steps unset to run until ring-down.
# Duration = 2e-8
# Steps = 4000
# PMLCells = 10
# MemoryBudgetGB = 4
# MaterialTable = materials.dat
OutputDir = output

[Mesh "bead"]
Shape = sphere
Material = dielectric
EpsRel = 9.8
X = 0.05
Y = 0.05
Z = 0.05
Radius = 0.01

[Source "feed"]
X = 0.02
Y = 0.05
Z = 0.05
Component = Ey

[Probe "forward"]
X = 0.08
Y = 0.05
Z = 0.05
Component = Ey
`

func main() {
	var (
		study       string
		exampleFlag bool
		verbose     bool
	)
	flag.StringVar(&study, "Study", "", "Study configuration file to run.")
	flag.BoolVar(
		&exampleFlag, "ExampleConfig", false,
		"Print an example study configuration to stdout.",
	)
	flag.BoolVar(&verbose, "Verbose", false, "Enable debug logging.")
	flag.Parse()

	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	switch {
	case exampleFlag:
		fmt.Print(exampleConfig)
	case study != "":
		runStudy(study)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

// runStudy drives one study to completion, stopping cleanly on SIGINT so
// partial probe data still reaches the output directory.
func runStudy(fname string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := fieldsim.RunStudyFile(ctx, fname)
	if err != nil {
		if st != nil {
			// The run stopped early; keep whatever the probes saw.
			if werr := st.WriteResults(); werr != nil {
				log.Error(werr.Error())
			}
		}
		log.Fatal(err.Error())
	}
}
