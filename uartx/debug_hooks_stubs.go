//go:build !uartxdebug

package uartx

func (u *UART) dbgISR(int)     {}
func (u *UART) dbgOnByte(bool) {}
func (u *UART) dbgAbort()      {}
func (u *UART) dbgReadWait()   {}
func (u *UART) dbgTimeout()    {}
