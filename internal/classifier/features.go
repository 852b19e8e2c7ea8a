package classifier

import "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"

// FeatureCount is the fixed length of the vector both oracles were trained on.
const FeatureCount = 8

// ExtractFeatures maps a sensor reading to the fixed-order feature vector:
// [pH, conductivity, ORP, turbidity, temperature, moisture, RF resonator,
// mean voltammetry]. An empty voltammetry sweep contributes 0.0.
func ExtractFeatures(sensors *entity.SensorReading) []float64 {
	voltMean := 0.0
	if n := len(sensors.Voltammetry); n > 0 {
		sum := 0.0
		for _, v := range sensors.Voltammetry {
			sum += v
		}
		voltMean = sum / float64(n)
	}

	return []float64{
		sensors.PH,
		sensors.Conductivity,
		sensors.ORP,
		sensors.Turbidity,
		sensors.Temperature,
		sensors.Moisture,
		sensors.RFResonator,
		voltMean,
	}
}
