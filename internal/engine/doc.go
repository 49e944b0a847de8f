// Package engine computes IFRS 9 risk parameters for one loan at a time.
//
// Each record flows through four stages in fixed order:
//
//	RateModel      -> pd_12m
//	Lifetime       -> pd_lifetime
//	SeverityModel  -> lgd
//	Stager + Loss  -> ifrs9_stage, ecl_amount, ecl_rate
//
// No stage reads another record, so batches can be split across workers
// freely. The only randomness is the LGD draw, taken from a per-record
// stream supplied by a StreamFactory.
package engine
