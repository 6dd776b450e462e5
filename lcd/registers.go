package lcd

// ST7365P commands.
const (
	cmdSWRESET = 0x01 // software reset
	cmdSLPOUT  = 0x11 // sleep out
	cmdINVON   = 0x21 // display inversion on
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A // column address set
	cmdRASET   = 0x2B // row address set
	cmdRAMWR   = 0x2C // memory write
	cmdVSCRDEF = 0x33 // vertical scroll definition
	cmdMADCTL  = 0x36 // memory access control
	cmdVSCSAD  = 0x37 // vertical scroll start address of RAM
	cmdCOLMOD  = 0x3A // pixel format set
	cmdEMS     = 0xB7 // entry mode set
)

const (
	colmodRGB565 = 0x55 // 16 bits per pixel
	madctlBGR    = 0x48 // BGR panel, top to bottom, left to right
	emsNormal    = 0xC6 // normal display, 16 to 18 bit colour conversion
)

// Panel geometry of the PicoCalc.
const (
	DefaultWidth        = 320
	DefaultHeight       = 320
	DefaultMemoryHeight = 480
)
