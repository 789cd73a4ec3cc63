// Command tc2100-gen writes a synthetic TC2100 byte stream for testing
// the framing pipeline without a meter on hand. Junk bytes can be
// interleaved between messages to exercise resynchronization.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"tc2100/pkg/observation"
)

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "gen":
		return runGen(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

func runGen(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	outPath := fs.String("out", "-", "output file; use '-' for stdout")
	count := fs.Int("count", 10, "number of messages to write")
	junk := fs.Int("junk", 0, "noise bytes to insert between messages")
	truncate := fs.Bool("truncate", false, "cut the final message short to simulate a torn read")
	seed := fs.Int64("seed", 0, "noise seed (0 = time-based)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var out io.Writer = stdout
	if *outPath != "" && *outPath != "-" {
		file, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(stderr, "failed to open output file:", err)
			return 1
		}
		defer file.Close()
		out = file
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	if err := genStream(out, *count, *junk, *truncate, rand.New(rand.NewSource(*seed))); err != nil {
		fmt.Fprintln(stderr, "write failed:", err)
		return 1
	}
	return 0
}

// genStream writes count encoded messages with junk noise bytes between
// them. Noise stays below 0x40 so it can never fake a header pair; the
// framer's recovery from real false headers is covered by its own tests.
func genStream(w io.Writer, count, junk int, truncate bool, rng *rand.Rand) error {
	buf := bufio.NewWriter(w)
	for i := 0; i < count; i++ {
		msg := syntheticMessage(i)
		if truncate && i == count-1 {
			msg = msg[:len(msg)/2]
		}
		if _, err := buf.Write(msg); err != nil {
			return err
		}
		if junk > 0 && i < count-1 {
			for j := 0; j < junk; j++ {
				if err := buf.WriteByte(byte(rng.Intn(0x40))); err != nil {
					return err
				}
			}
		}
	}
	return buf.Flush()
}

func syntheticMessage(i int) []byte {
	ch1 := 20.0 + 0.1*float64(i%100)
	ch2 := math.NaN()
	if i%3 != 0 {
		ch2 = 60.0 - 0.1*float64(i%100)
	}
	return observation.Observation{
		ChannelTemp:      [2]float64{ch1, ch2},
		Units:            observation.Celsius,
		ThermocoupleType: observation.TypeK,
		MeterTime:        time.Duration(i) * time.Second,
	}.Encode()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tc2100-gen gen [--out file.bin] [--count 10] [--junk 0] [--truncate] [--seed 0]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  gen   write a synthetic TC2100 byte stream")
}
