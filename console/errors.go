package console

import "strconv"

// Code is a status code of the interpreter's error vocabulary. Negative
// codes are system errors, positive codes are raised by applications and
// zero is success. Code implements error so callers can use errors.Is.
type Code int

const (
	OK                   Code = 0
	Abort                Code = -1
	AbortMessage         Code = -2
	StackOverflow        Code = -3
	StackUnderflow       Code = -4
	ReturnStackOverflow  Code = -5
	ReturnStackUnderflow Code = -6
	LoopNesting          Code = -7
	DictionaryOverflow   Code = -8
	InvalidAddress       Code = -9
	DivisionByZero       Code = -10
	OutOfRange           Code = -11
	TypeMismatch         Code = -12
	UndefinedWord        Code = -13
	CompileOnly          Code = -14
	InvalidForget        Code = -15
	ZeroLengthName       Code = -16
	PicturedOverflow     Code = -17
	ParsedOverflow       Code = -18
	NameTooLong          Code = -19
	ReadOnly             Code = -20
	Unsupported          Code = -21
	ControlMismatch      Code = -22
	Alignment            Code = -23
	InvalidNumeric       Code = -24
	ReturnImbalance      Code = -25
	LoopUnavailable      Code = -26
	InvalidRecursion     Code = -27
	UserInterrupt        Code = -28
	CompilerNesting      Code = -29
	IOException          Code = -57
)

var catalog = map[Code]string{
	OK:                   "ok",
	Abort:                "Abort",
	AbortMessage:         "Abort: Message",
	StackOverflow:        "Stack overflow",
	StackUnderflow:       "Stack underflow",
	ReturnStackOverflow:  "Return stack overflow",
	ReturnStackUnderflow: "Return stack underflow",
	LoopNesting:          "Do-loops nested too deeply",
	DictionaryOverflow:   "Dictionary overflow",
	InvalidAddress:       "Invalid memory address",
	DivisionByZero:       "Division by zero",
	OutOfRange:           "Result out of range",
	TypeMismatch:         "Argument type mismatch",
	UndefinedWord:        "Undefined word",
	CompileOnly:          "Interpreting a compile-only word",
	InvalidForget:        "Invalid FORGET",
	ZeroLengthName:       "Attempt to use zero-length string as a name",
	PicturedOverflow:     "Pictured numeric output string overflow",
	ParsedOverflow:       "Parsed string overflow",
	NameTooLong:          "Definition name too long",
	ReadOnly:             "Write to a read-only location",
	Unsupported:          "Unsupported operation",
	ControlMismatch:      "Control structure mismatch",
	Alignment:            "Address alignment exception",
	InvalidNumeric:       "Invalid numeric argument",
	ReturnImbalance:      "Return stack imbalance",
	LoopUnavailable:      "Loop parameters unavailable",
	InvalidRecursion:     "Invalid recursion",
	UserInterrupt:        "User Interrupt",
	CompilerNesting:      "Compiler nesting",
	IOException:          "Exception in sending or receiving",
}

// Known reports whether c is in the catalog.
func (c Code) Known() bool {
	_, ok := catalog[c]
	return ok
}

func (c Code) Error() string {
	if s, ok := catalog[c]; ok {
		return s
	}
	if c < 0 {
		return "Unknown system error: " + strconv.Itoa(int(c))
	}
	return "Application error: " + strconv.Itoa(int(c))
}

// Message is the text typed for c, line ending included. Codes outside the
// catalog start on a fresh, indented line.
func (c Code) Message() string {
	if c.Known() {
		return c.Error() + "\r\n"
	}
	return "\r\n  " + c.Error() + "\r\n"
}
