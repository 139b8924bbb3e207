package engine

import "math/rand/v2"

var WheelOptions = []string{
	"Down it",
	"Pick someone to drink",
	"Minus one stroke",
	"Plus one stroke",
	"Wrong hand only",
	"Swap drinks",
	"Safe",
	"Order for the table",
}

var spinWheel = func() string {
	return WheelOptions[rand.IntN(len(WheelOptions))]
}
