package consts

// ROOMTEMP is the nominal analysis temperature, 27 degC in kelvin.
const ROOMTEMP = 300.15
