/*
Package herdmetrics evaluates spreadsheet-style formulas that define herd
metrics over collections of animal and event records.

# Overview

A formula is a single expression. It is tokenized, then parsed and evaluated
in one recursive-descent pass against a Context that supplies the record
collections, farm parameters, an optional current record and a reference
date:

	env := herdmetrics.Context{
	    Animals:    animals,
	    Parameters: map[string]any{"pve": 50},
	}
	v := herdmetrics.Evaluate(`COUNT("animals", "reproductive_status = 'prenha'")`, env)

Evaluate never fails. A formula that does not parse evaluates to null, so a
batch of metrics can be computed without one bad formula affecting the rest.
Use Validate to get the error message for display, or Engine.EvaluateE to
get it programmatically.

# Syntax

	expression     := comparison
	comparison     := additive ( ('='|'=='|'!='|'<>'|'<'|'>'|'<='|'>=') additive )*
	additive       := multiplicative ( ('+'|'-') multiplicative )*
	multiplicative := unary ( ('*'|'/'|'%') unary )*
	unary          := '-' primary | primary
	primary        := number | 'text' | "text" | TRUE | FALSE | field
	                | FUNCTION '(' [ expression (',' expression)* ] ')'
	                | '(' expression ')'

Function names and TRUE/FALSE are case-insensitive; field names are not.
Comparisons fold left, so a < b < c compares the boolean a < b with c.

# Arithmetic

Null operands count as 0. Division and modulo by 0 give 0. + joins text when
either operand is text. = and != are strict: 1 = '1' is false.

# Functions

	IF(cond, a, b)                      a when cond is truthy, else b
	AND(...), OR(...)                   boolean reduction
	SUM(...)                            sum; non-numeric values count as 0
	COUNT(collection, filter?)          records in "animals" or "events"
	COUNT(...)                          non-null values
	COUNTIF(list, value)                list items strictly equal to value
	AVERAGE(collection, field, filter?) mean of a numeric field
	AVERAGE(...), MIN(...), MAX(...)    over numeric values
	ABS(x), ROUND(x, decimals?)         numeric helpers
	TODAY()                             the reference date
	DATEDIFF(d1, d2, unit?)             d2 - d1 in days, months or years
	PARAM(name)                         a farm parameter, or null

Every argument is evaluated before the call, including the branches of IF.
Collection filters use the condition language of package filter.

# Inspection

ExtractFields lists the field names a formula reads and ExtractParams the
parameter names it passes to PARAM, so callers can check inputs before
evaluating.
*/
package herdmetrics
