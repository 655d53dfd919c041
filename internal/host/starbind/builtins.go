package starbind

import (
	"errors"
	"fmt"
	"math"

	"go.starlark.net/starlark"

	"leaker/internal/dump"
	"leaker/internal/lasterror"
	"leaker/internal/region"
)

type builtinFn func(thread *starlark.Thread, args starlark.Tuple) (starlark.Value, error)

// def registers a builtin taking between minArgs and maxArgs positional
// arguments.
func (env *Env) def(name, args, descr string, minArgs, maxArgs int, fn builtinFn) {
	env.env[name] = starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := isCancelled(thread); err != nil {
			return starlark.None, err
		}
		if len(kwargs) > 0 {
			return nil, decorateError(thread, fmt.Errorf("%s does not accept keyword arguments", name))
		}
		if len(args) < minArgs || len(args) > maxArgs {
			return nil, decorateError(thread, fmt.Errorf("wrong number of arguments to %s", name))
		}
		v, err := fn(thread, args)
		if err != nil {
			return nil, decorateError(thread, err)
		}
		return v, nil
	})
	env.doc[name] = name + args + "\n\n" + name + " " + descr
}

// errFailed marks a recoverable failure: the builtin returns None and the
// detail stays in the last-error slot.
var errFailed = errors.New("operation failed")

func toUint64(v starlark.Value, what string) (uint64, error) {
	n, ok := v.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%s must be an int, not %s", what, v.Type())
	}
	if u, ok := n.Uint64(); ok {
		return u, nil
	}
	if i, ok := n.Int64(); ok {
		return uint64(i), nil
	}
	return 0, fmt.Errorf("%s out of range", what)
}

func toInt(v starlark.Value, what string) (int, error) {
	n, ok := v.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%s must be an int, not %s", what, v.Type())
	}
	i, ok := n.Int64()
	if !ok || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("%s out of range", what)
	}
	return int(i), nil
}

func toString(v starlark.Value, what string) (string, error) {
	s, ok := v.(starlark.String)
	if !ok {
		return "", fmt.Errorf("%s must be a string, not %s", what, v.Type())
	}
	return string(s), nil
}

// address accepts an int or an address expression string.
func (env *Env) address(v starlark.Value) (uint64, error) {
	if s, ok := v.(starlark.String); ok {
		addr, err := env.leaker.Resolve(string(s))
		if err != nil {
			return 0, errFailed
		}
		return addr, nil
	}
	return toUint64(v, "address")
}

// result converts a recoverable failure into None.
func result(v starlark.Value, err error) (starlark.Value, error) {
	if err != nil {
		return starlark.None, nil
	}
	return v, nil
}

// withAddress runs fn on the address in args[0]. An unresolvable symbol
// yields None.
func (env *Env) withAddress(args starlark.Tuple, fn func(addr uint64) (starlark.Value, error)) (starlark.Value, error) {
	addr, err := env.address(args[0])
	if err == errFailed {
		return starlark.None, nil
	}
	if err != nil {
		return nil, err
	}
	return fn(addr)
}

var readers = []struct {
	name string
	kind dump.Kind
}{
	{"uint8_t", dump.Uint8},
	{"sint8_t", dump.Int8},
	{"uint16_t", dump.Uint16},
	{"sint16_t", dump.Int16},
	{"uint32_t", dump.Uint32},
	{"sint32_t", dump.Int32},
	{"uint64_t", dump.Uint64},
	{"sint64_t", dump.Int64},
	{"binary32", dump.Float32},
	{"binary64", dump.Float64},
}

func (env *Env) predeclare() {
	l := env.leaker

	env.def("breakpoint", "()", "raises a breakpoint trap in the calling thread. Without an attached debugger the process terminates.", 0, 0,
		func(*starlark.Thread, starlark.Tuple) (starlark.Value, error) {
			l.Breakpoint()
			return starlark.None, nil
		})

	env.def("syntax", "(Name=None)", "returns the listing syntax. With an argument (\"default\", \"intel\" or \"att\") it switches syntax and returns the previous one, or None if the name is not recognized.", 0, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			if len(args) == 0 {
				return starlark.String(l.Syntax()), nil
			}
			s, err := toString(args[0], "syntax")
			if err != nil {
				return nil, err
			}
			return result(toStarlarkString(l.SetSyntax(s)))
		})

	env.def("bits", "(Width=None)", "returns the decode width. With an argument (16, 32 or 64) it switches width and returns the previous one, or None if the width is not supported.", 0, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			if len(args) == 0 {
				return starlark.MakeInt(l.Bits()), nil
			}
			bits, err := toInt(args[0], "width")
			if err != nil {
				return nil, err
			}
			prev, err := l.SetBits(bits)
			return result(starlark.MakeInt(prev), err)
		})

	env.def("disassemble", "(Address, Count)", "returns Count instructions starting at Address, one per line. Returns None if fewer could be decoded.", 2, 2,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			n, err := toInt(args[1], "count")
			if err != nil {
				return nil, err
			}
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				return result(toStarlarkString(l.Disassemble(addr, n)))
			})
		})

	env.def("dump", "(Address, Count, Type=\"uint8_t\")", "returns a hex dump of Count elements of Type starting at Address. Type is one of "+typeList()+".", 2, 3,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			n, err := toInt(args[1], "count")
			if err != nil {
				return nil, err
			}
			typ := "uint8_t"
			if len(args) == 3 {
				if typ, err = toString(args[2], "type"); err != nil {
					return nil, err
				}
			}
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				return result(toStarlarkString(l.Dump(addr, n, typ)))
			})
		})

	for _, r := range readers {
		kind := r.kind
		env.def(r.name, "(Address)", "reads a "+kind.String()+" from Address.", 1, 1,
			func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
				return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
					v, err := l.Read(kind, addr)
					return result(scalar(v.Kind, v.Uint(), v.Int(), v.Float()), err)
				})
			})
	}

	env.def("read", "(Type, Address)", "reads one element of the named Type from Address.", 2, 2,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			typ, err := toString(args[0], "type")
			if err != nil {
				return nil, err
			}
			return env.withAddress(args[1:], func(addr uint64) (starlark.Value, error) {
				v, err := l.ReadType(typ, addr)
				return result(scalar(v.Kind, v.Uint(), v.Int(), v.Float()), err)
			})
		})

	env.def("write", "(Address, Width, Value)", "writes the low Width bytes (1, 2, 4 or 8) of Value to Address and returns the previous contents.", 3, 3,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			width, err := toInt(args[1], "width")
			if err != nil {
				return nil, err
			}
			value, err := toUint64(args[2], "value")
			if err != nil {
				return nil, err
			}
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				prev, err := l.Write(addr, width, value)
				return result(starlark.MakeUint64(prev), err)
			})
		})

	env.def("store", "(Address, Size, Value)", "writes an unsigned Value of Size bytes, clamping Size to 8, and returns the size written.", 3, 3,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			size, err := toInt(args[1], "size")
			if err != nil {
				return nil, err
			}
			value, err := toUint64(args[2], "value")
			if err != nil {
				return nil, err
			}
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				n, err := l.Store(addr, size, value)
				return result(starlark.MakeInt(n), err)
			})
		})

	env.def("load", "(Address, Size)", "reads an unsigned integer of Size bytes (0, 1, 2, 4 or 8) and returns (Size, Value).", 2, 2,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			size, err := toInt(args[1], "size")
			if err != nil {
				return nil, err
			}
			kinds := map[int]dump.Kind{1: dump.Uint8, 2: dump.Uint16, 4: dump.Uint32, 8: dump.Uint64}
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				if size == 0 {
					return starlark.Tuple{starlark.MakeInt(0), starlark.MakeInt(0)}, nil
				}
				kind, ok := kinds[size]
				if !ok {
					return starlark.None, nil
				}
				v, err := l.Read(kind, addr)
				return result(starlark.Tuple{starlark.MakeInt(size), starlark.MakeUint64(v.Uint())}, err)
			})
		})

	env.def("read_bytes", "(Address, Size)", "copies Size bytes starting at Address.", 2, 2,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			size, err := toInt(args[1], "size")
			if err != nil {
				return nil, err
			}
			if size < 0 {
				return nil, fmt.Errorf("size must not be negative")
			}
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				b, err := l.Load(addr, size)
				return result(starlark.Bytes(b), err)
			})
		})

	env.def("unicodestring", "(Address)", "copies the string described by the wide-character descriptor at Address.", 1, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				return result(toStarlarkString(l.UnicodeString(addr)))
			})
		})

	env.def("ansistring", "(Address)", "copies the string described by the byte-string descriptor at Address.", 1, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				return result(toStarlarkString(l.AnsiString(addr)))
			})
		})

	env.def("getPeb", "()", "returns the address of the process control block, or 0.", 0, 0,
		func(*starlark.Thread, starlark.Tuple) (starlark.Value, error) {
			return starlark.MakeUint64(l.ProcessBlock()), nil
		})

	env.def("getTeb", "(ThreadId=0)", "returns the address of a thread control block, or 0. ThreadId 0 is the calling thread.", 0, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			var tid uint64
			if len(args) == 1 {
				var err error
				if tid, err = toUint64(args[0], "thread id"); err != nil {
					return nil, err
				}
			}
			return starlark.MakeUint64(l.ThreadBlock(uint32(tid))), nil
		})

	env.def("getlasterror", "()", "returns the code of the most recent failure.", 0, 0,
		func(*starlark.Thread, starlark.Tuple) (starlark.Value, error) {
			return starlark.MakeUint64(uint64(l.LastError())), nil
		})

	env.def("geterrormessage", "(Code)", "returns the message for an error code, or None if the code is unknown.", 1, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			code, err := toUint64(args[0], "code")
			if err != nil {
				return nil, err
			}
			return result(toStarlarkString(l.ErrorMessage(lasterror.Code(code))))
		})

	regionFields := []struct {
		name  string
		descr string
		get   func(uint64) (uint64, error)
	}{
		{"mem_baseaddress", "returns the allocation base of the region containing Address.", l.MemBaseAddress},
		{"mem_size", "returns the size of the region containing Address.", l.MemSize},
		{"mem_state", "returns the state of the region containing Address.", l.MemState},
		{"mem_protect", "returns the protection of the region containing Address.", l.MemProtect},
		{"mem_type", "returns the type of the region containing Address.", l.MemType},
	}
	for _, f := range regionFields {
		get := f.get
		env.def(f.name, "(Address)", f.descr, 1, 1,
			func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
				return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
					v, err := get(addr)
					return result(starlark.MakeUint64(v), err)
				})
			})
	}

	env.def("regions", "()", "returns every region of the address space as a list of dicts.", 0, 0,
		func(*starlark.Thread, starlark.Tuple) (starlark.Value, error) {
			var list []starlark.Value
			err := l.Regions(func(info region.Info) bool {
				list = append(list, regionDict(info))
				return true
			})
			return result(starlark.NewList(list), err)
		})

	env.def("alloc", "(Size)", "maps a zeroed read-write scratch buffer and returns its address.", 1, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			size, err := toInt(args[0], "size")
			if err != nil {
				return nil, err
			}
			addr, err := l.Alloc(size)
			return result(starlark.MakeUint64(addr), err)
		})

	env.def("free", "(Address)", "releases a scratch buffer returned by alloc. Returns True on success.", 1, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			return env.withAddress(args, func(addr uint64) (starlark.Value, error) {
				return result(starlark.True, l.Free(addr))
			})
		})

	env.def("symbol", "(Expr)", "resolves an address expression (number, symbol or symbol+offset).", 1, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			s, err := toString(args[0], "expression")
			if err != nil {
				return nil, err
			}
			addr, err := l.Resolve(s)
			return result(starlark.MakeUint64(addr), err)
		})

	env.def("describe", "(Address)", "returns \"symbol+offset\" for Address, or an empty string.", 1, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			addr, err := toUint64(args[0], "address")
			if err != nil {
				return nil, err
			}
			return starlark.String(l.Describe(addr)), nil
		})

	env.def("help", "(Object)", "prints help for Object.", 0, 1,
		func(_ *starlark.Thread, args starlark.Tuple) (starlark.Value, error) {
			if len(args) == 0 {
				fmt.Fprintln(env.out, "Available builtins:")
				for _, name := range env.Builtins() {
					fmt.Fprintf(env.out, "\t%s\n", name)
				}
				return starlark.None, nil
			}
			switch x := args[0].(type) {
			case *starlark.Builtin:
				if doc := env.doc[x.Name()]; doc != "" {
					fmt.Fprintf(env.out, "%s\n", doc)
				} else {
					fmt.Fprintf(env.out, "no help for builtin %s\n", x.Name())
				}
			case *starlark.Function:
				fmt.Fprintf(env.out, "user defined function %s\n", x.Name())
				if doc := x.Doc(); doc != "" {
					fmt.Fprintln(env.out, doc)
				}
			default:
				fmt.Fprintf(env.out, "no help for object of type %s\n", args[0].Type())
			}
			return starlark.None, nil
		})
}

func toStarlarkString(s string, err error) (starlark.Value, error) {
	return starlark.String(s), err
}

func scalar(k dump.Kind, u uint64, i int64, f float64) starlark.Value {
	switch {
	case k.Float():
		return starlark.Float(f)
	case k.Signed():
		return starlark.MakeInt64(i)
	}
	return starlark.MakeUint64(u)
}

func regionDict(info region.Info) starlark.Value {
	d := starlark.NewDict(7)
	d.SetKey(starlark.String("base"), starlark.MakeUint64(info.BaseAddress))
	d.SetKey(starlark.String("allocation_base"), starlark.MakeUint64(info.AllocationBase))
	d.SetKey(starlark.String("allocation_protect"), starlark.MakeUint64(uint64(info.AllocationProtect)))
	d.SetKey(starlark.String("size"), starlark.MakeUint64(info.RegionSize))
	d.SetKey(starlark.String("state"), starlark.MakeUint64(uint64(info.State)))
	d.SetKey(starlark.String("protect"), starlark.MakeUint64(uint64(info.Protect)))
	d.SetKey(starlark.String("type"), starlark.MakeUint64(uint64(info.Type)))
	return d
}

func typeList() string {
	return "uint8_t/ubyte1, uint16_t/uint2, uint32_t/uint4, uint64_t/uint8, " +
		"int8_t/sbyte1, int16_t/sint2, int32_t/sint4, int64_t/sint8, float/binary32 and double/binary64"
}
