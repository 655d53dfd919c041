package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"leaker/internal/host"
	"leaker/internal/lasterror"
	"leaker/internal/region"
	"leaker/internal/ui/colorize"
)

func newDisasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <address>",
		Short: "Disassemble instructions at an address",
		Long: `Disassemble decodes exactly N instructions starting at the address.
If fewer can be decoded, the decoded prefix is printed and the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			l, cfg, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			addr, err := resolve(l, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			text, err := l.Disassemble(addr, n)
			if text != "" {
				if useColor(cfg, out) {
					text = colorize.Listing(text, l.Syntax())
				}
				fmt.Fprintln(out, text)
			}
			return err
		},
	}
	cmd.Flags().IntP("count", "n", 10, "Number of instructions")
	return cmd
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <address>",
		Short: "Hex dump typed elements at an address",
		Long: `Dump renders rows of address, typed values and printable ASCII.
Types: uint8_t (ubyte1), uint16_t (uint2), uint32_t (uint4), uint64_t (uint8),
int8_t (sbyte1), int16_t (sint2), int32_t (sint4), int64_t (sint8),
float (binary32), double (binary64).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			typ, _ := cmd.Flags().GetString("type")
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			addr, err := resolve(l, args[0])
			if err != nil {
				return err
			}
			text, err := l.Dump(addr, n, typ)
			fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().IntP("count", "n", 64, "Number of elements")
	cmd.Flags().StringP("type", "t", "uint8_t", "Element type")
	return cmd
}

// formatValue renders a scalar the way its kind reads naturally.
func formatValue(v host.Value) string {
	switch {
	case v.Kind.Float():
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case v.Kind.Signed():
		return strconv.FormatInt(v.Int(), 10)
	}
	return fmt.Sprintf("%#x", v.Uint())
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <type> <address>",
		Short: "Read one typed value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			addr, err := resolve(l, args[1])
			if err != nil {
				return err
			}
			v, err := l.ReadType(args[0], addr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatValue(v))
			return nil
		},
	}
}

func writeRegion(w io.Writer, info region.Info, bits int) {
	digits := bits / 4
	fmt.Fprintf(w, "base:       %0*x\n", digits, info.BaseAddress)
	fmt.Fprintf(w, "allocation: %0*x (%s)\n", digits, info.AllocationBase, region.ProtectName(info.AllocationProtect))
	fmt.Fprintf(w, "size:       %#x\n", info.RegionSize)
	fmt.Fprintf(w, "state:      %s\n", region.StateName(info.State))
	fmt.Fprintf(w, "protect:    %s\n", region.ProtectName(info.Protect))
	fmt.Fprintf(w, "type:       %s\n", region.TypeName(info.Type))
}

func newRegionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "region <address>",
		Short: "Describe the memory region containing an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			addr, err := resolve(l, args[0])
			if err != nil {
				return err
			}
			info, err := l.Region(addr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeRegion(out, info, l.Bits())
			if sym := l.Describe(addr); sym != "" {
				fmt.Fprintf(out, "symbol:     %s\n", sym)
			}
			return nil
		},
	}
}

// writeRegions prints one line per region. styled adds lipgloss colors
// for terminals.
func writeRegions(w io.Writer, regions []region.Info, styled bool) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	addressStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	freeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	header := fmt.Sprintf("%-16s  %-16s  %-7s  %-4s  %s", "BASE", "SIZE", "STATE", "PROT", "TYPE")
	if styled {
		header = headerStyle.Render(header)
	}
	fmt.Fprintln(w, header)

	for _, r := range regions {
		base := fmt.Sprintf("%016x", r.BaseAddress)
		rest := fmt.Sprintf("%-16x  %-7s  %-4s  %s",
			r.RegionSize, region.StateName(r.State), region.ProtectName(r.Protect), region.TypeName(r.Type))
		if styled {
			base = addressStyle.Render(base)
			if r.State == region.MemFree {
				rest = freeStyle.Render(rest)
			}
		}
		fmt.Fprintf(w, "%s  %s\n", base, rest)
	}
}

func newRegionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the regions of the address space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			var regions []region.Info
			err = l.Regions(func(info region.Info) bool {
				if all || info.State != region.MemFree {
					regions = append(regions, info)
				}
				return true
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeRegions(out, regions, isTerminal(out))
			return nil
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Include free regions")
	return cmd
}

func newPebCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peb",
		Short: "Print the process environment block address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			addr := l.ProcessBlock()
			if addr == 0 {
				return fmt.Errorf("process block unavailable")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%#x\n", addr)
			return nil
		},
	}
}

func newTebCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teb [tid]",
		Short: "Print a thread environment block address",
		Long: `Teb prints the control block of thread tid, or of the calling thread
when tid is omitted or zero. On Linux only the calling thread resolves.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tid uint64
			if len(args) == 1 {
				var err error
				if tid, err = parseUint(args[0], 32); err != nil {
					return fmt.Errorf("tid: %w", err)
				}
			}
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			addr := l.ThreadBlock(uint32(tid))
			if addr == 0 {
				return fmt.Errorf("thread block unavailable for thread %d", tid)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%#x\n", addr)
			return nil
		},
	}
}

func newErrmsgCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errmsg <code>",
		Short: "Print the message for an error code",
		Example: `
leaker errmsg 0xC0000005
  `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := parseUint(args[0], 32)
			if err != nil {
				return fmt.Errorf("code: %w", err)
			}
			l, _, err := newLeaker(cmd)
			if err != nil {
				return err
			}
			msg, err := l.ErrorMessage(lasterror.Code(code))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
