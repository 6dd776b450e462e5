//go:build picocalc

package config

const defaultBackend = BackendPicoCalc
