package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories/chart"
	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

type FlowchartConfig struct {
	OutPath   string
	EdgesPath string
	DOTPath   string
	Title     string
}

func defaultFlowchartConfig() FlowchartConfig {
	return FlowchartConfig{
		OutPath:   "story_flowchart.png",
		EdgesPath: "story_flowchart_edges.xlsx",
		Title:     chart.FlowchartTitle,
	}
}

func (c FlowchartConfig) Validate() error {
	if c.OutPath == "" && c.EdgesPath == "" && c.DOTPath == "" {
		return errors.New("nothing to write: set --out, --edges or --dot")
	}
	return nil
}

func newFlowchartCmd(a *app) *cobra.Command {
	cfg := defaultFlowchartConfig()
	cmd := &cobra.Command{
		Use:   "flowchart",
		Short: "Draw the story structure coded from the Norwegian stories",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			s := chart.NorwegianStructure()
			fc, err := chart.BuildFlowchart(s)
			if err != nil {
				return err
			}
			a.logger.Debug("flowchart built", zap.Int("nodes", s.NodeCount()), zap.Int("edges", s.EdgeCount()))

			if cfg.OutPath != "" {
				if err := fc.SavePlot(cfg.OutPath, cfg.Title); err != nil {
					return err
				}
			}
			if cfg.EdgesPath != "" {
				if err := fc.WriteEdgesXLSX(cfg.EdgesPath); err != nil {
					return err
				}
			}
			if cfg.DOTPath != "" {
				b, err := fc.DOT()
				if err != nil {
					return err
				}
				if err := fileutils.WriteFileAtomicSameDir(cfg.DOTPath, append(b, '\n'), 0o644); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "nodes=%d edges=%d out=%s edges_out=%s dot=%s\n",
				len(fc.Nodes), len(fc.Edges), cfg.OutPath, cfg.EdgesPath, cfg.DOTPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "output image (.png, .svg or .pdf; empty skips)")
	f.StringVar(&cfg.EdgesPath, "edges", cfg.EdgesPath, "write the edge list to this .xlsx file (empty skips)")
	f.StringVar(&cfg.DOTPath, "dot", cfg.DOTPath, "write the graph in Graphviz DOT format to this file")
	f.StringVar(&cfg.Title, "title", cfg.Title, "chart title")
	return cmd
}
