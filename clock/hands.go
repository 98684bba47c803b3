package clock

// Hands holds the rotation of each hand in degrees, clockwise from 12.
type Hands struct {
	Hour   float64
	Minute float64
	Second float64
}

// SecondDeg is the second hand angle.
func SecondDeg(seconds int) float64 {
	return float64(seconds) * 6
}

// MinuteDeg advances the minute hand with the seconds so it sweeps rather
// than jumps.
func MinuteDeg(minutes, seconds int) float64 {
	return float64(minutes)*6 + float64(seconds)*0.1
}

// HourDeg advances the hour hand with minutes and seconds.
func HourDeg(hours, minutes, seconds int) float64 {
	return float64(hours%12)*30 + float64(minutes)*0.5 + float64(seconds)*(0.5/60)
}

// HandsFor returns all three angles for tp.
func HandsFor(tp TimeParts) Hands {
	return Hands{
		Hour:   HourDeg(tp.Hours, tp.Minutes, tp.Seconds),
		Minute: MinuteDeg(tp.Minutes, tp.Seconds),
		Second: SecondDeg(tp.Seconds),
	}
}
