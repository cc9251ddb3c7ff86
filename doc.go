// Package ies implements one update step of an iterative ensemble smoother
// with row scaling, a Monte-Carlo approximation to a Bayesian update used in
// inverse problems such as history matching.
//
// The update derives a single ensemble-space transition matrix from the
// simulated responses, the observations and their error model, and then
// applies that same transition to every supplied row-scaled parameter
// ensemble. See Evensen (2019), "Efficient Implementation of an Iterative
// Ensemble Smoother for Data Assimilation in Ecological Modeling", for the
// underlying algorithm.
package ies
