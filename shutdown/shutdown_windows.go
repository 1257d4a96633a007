//go:build windows

package shutdown

import "os"

func signals() []os.Signal { return []os.Signal{os.Interrupt} }
