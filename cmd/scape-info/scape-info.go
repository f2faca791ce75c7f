package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/voxelkit/scape"
)

// Quick inspection tool: dumps the header and derived geometry of one or
// more container files so acquisitions can be sanity-checked without
// firing up an analysis environment.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: scape-info <file.3DU16...>")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stacks, err := scape.OpenMany(ctx, os.Args[1:]...)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, s := range stacks {
			s.Close()
		}
	}()

	for i, s := range stacks {
		if i > 0 {
			fmt.Println()
		}
		dump(s)
	}
}

func dump(s *scape.Stack) {
	h := s.Header()
	scales := h.Scales()

	fmt.Printf("File:        %s\n", s.Path())
	fmt.Printf("Shape:       %v (T, C, Z, Y, X)\n", h.Shape())
	fmt.Printf("Voxel size:  %g x %g x %g um (x, y, z)\n", scales[0], scales[1], scales[2])
	fmt.Printf("Plane:       %s\n", humanize.IBytes(uint64(h.BytesPerXY())))
	fmt.Printf("Volume:      %s\n", humanize.IBytes(uint64(h.BytesPerVolume())))
	fmt.Printf("Payload:     %s (%d volumes)\n",
		humanize.IBytes(uint64(h.NFrame)*uint64(h.BytesPerVolume())), h.NFrame)
}
