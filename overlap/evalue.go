// Copyright 2019 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package overlap

import (
	"math"

	"github.com/pkg/errors"
)

// An Evalue is the quantized form of a fractional sequencing error rate.
// Rates are stored in units of 1/10000, so the 12-bit field covers
// [0, 0.4095] at a resolution of 0.0001.  The quantizer is monotonic and
// Decode(Encode(r)) == r for any r that is an exact multiple of the
// resolution.
const (
	evalueBits = 12

	// MaxEvalue is the largest storable quantized value.
	MaxEvalue = 1<<evalueBits - 1

	// EvalueResolution is the error-rate step between adjacent Evalues.
	EvalueResolution = 0.0001

	// MaxErate is the largest error rate an Evalue can represent.
	MaxErate = MaxEvalue * EvalueResolution
)

// EncodeEvalue quantizes an error rate.  Rates that do not fit in the
// stored field are rejected.  The bound is checked on the quantized value,
// not the raw rate: DecodeEvalue(MaxEvalue) sits one ulp above the MaxErate
// constant, and the decoded top of the range must re-encode.
func EncodeEvalue(rate float64) (uint16, error) {
	q := math.Ceil(rate / EvalueResolution)
	if rate < 0.0 || q > MaxEvalue {
		return 0, errors.Errorf("error rate %f outside [0, %f]", rate, MaxErate)
	}
	return uint16(q), nil
}

// DecodeEvalue is the inverse of EncodeEvalue.
func DecodeEvalue(ev uint16) float64 {
	return float64(ev) * EvalueResolution
}
