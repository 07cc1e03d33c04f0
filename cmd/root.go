// cmd/root.go
package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kinetic-sim/kinetic-sim/certificate"
	"github.com/kinetic-sim/kinetic-sim/engine"
	"github.com/kinetic-sim/kinetic-sim/loader"
	"github.com/kinetic-sim/kinetic-sim/point"
	"github.com/kinetic-sim/kinetic-sim/samples"
)

var (
	configPath   string
	pointsPath   string
	logLevel     string
	bandMin      float64
	bandMax      float64
	rebuildEvery bool
)

var rootCmd = &cobra.Command{
	Use:   "kinetic-sim",
	Short: "Kinetic data structure simulation engine",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a kinetic simulation from a trajectory file",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := engine.DefaultConfig()
		if configPath != "" {
			cfg, err = engine.LoadConfig(configPath)
			if err != nil {
				return err
			}
		}

		logrus.Infof("loading trajectories from %s (axis_count=%d)", pointsPath, cfg.AxisCount)
		trajectories, err := loader.LoadCSV(pointsPath, cfg.AxisCount)
		if err != nil {
			return err
		}

		eng := engine.New(cfg)
		for _, id := range trajectories.IDs() {
			eng.AddPoint(id, nil)
		}

		init := loader.NewInitializer(trajectories)
		allPoints := make([]*point.Point, 0, len(trajectories.IDs()))
		for _, id := range trajectories.IDs() {
			p, _ := eng.Point(id)
			allPoints = append(allPoints, p)
		}
		if err := init.ComputeInitialValues(allPoints); err != nil {
			return err
		}

		eng.SetMover(loader.NewMover(trajectories, cfg.EnablePredictions, cfg.EpsilonTrajectory))
		eng.SetAlgorithm(samples.NewNullAlgorithm(cfg.MaxIterationCount))
		eng.SetCertificateGenerator(newAllPairsCertificateGenerator(bandMin, bandMax, rebuildEvery))

		eng.OnTick(func(now float64, points []*point.Point) {
			logrus.Debugf("tick now=%.3f points=%d", now, len(points))
		})

		logrus.Infof("starting run: %d points, horizon=%.1f", len(allPoints), cfg.EndTime)
		if err := eng.Run(context.Background()); err != nil {
			return err
		}
		logrus.Info("run complete")
		return nil
	},
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML engine config (defaults if unset)")
	runCmd.Flags().StringVar(&pointsPath, "points", "", "CSV trajectory file (time,point_id,axis0,axis1,...)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().Float64Var(&bandMin, "band-min", 0, "Minimum permitted distance between every pair of points")
	runCmd.Flags().Float64Var(&bandMax, "band-max", 100, "Maximum permitted distance between every pair of points")
	runCmd.Flags().BoolVar(&rebuildEvery, "rebuild-every-instant", false, "Rebuild every pairwise certificate on every instant instead of building them once")
	_ = runCmd.MarkFlagRequired("points")

	rootCmd.AddCommand(runCmd)
}

// allPairsCertificateGenerator is the default capability.CertificateGenerator:
// it maintains one DistanceCertificate per unordered pair of points, rebuilding
// the full set either once (rebuildEvery=false, the common case once the
// initial certificates are in place) or every instant (rebuildEvery=true, for
// algorithms that add/remove points dynamically).
type allPairsCertificateGenerator struct {
	min, max     float64
	rebuildEvery bool
	built        bool
}

func newAllPairsCertificateGenerator(min, max float64, rebuildEvery bool) *allPairsCertificateGenerator {
	return &allPairsCertificateGenerator{min: min, max: max, rebuildEvery: rebuildEvery}
}

func (g *allPairsCertificateGenerator) RebuildAll(points []*point.Point, now float64) error {
	if g.built && !g.rebuildEvery {
		return nil
	}
	for _, p := range points {
		for _, c := range p.Certificates.All() {
			p.RemoveCertificate(c)
			c.Dispose()
		}
	}
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			u, v := points[i], points[j]
			c := samples.NewDistanceCertificate(u, v, g.min, g.max, now)
			u.Certificates.Insert(certificate.Certificate(c))
			v.Certificates.Insert(certificate.Certificate(c))
		}
	}
	g.built = true
	return nil
}

func (g *allPairsCertificateGenerator) RebuildForPoint(_ *point.Point, _ point.Node, _ float64) error {
	return nil
}

func (g *allPairsCertificateGenerator) NotImplementedRebuildAll() bool      { return false }
func (g *allPairsCertificateGenerator) NotImplementedRebuildForPoint() bool { return true }
