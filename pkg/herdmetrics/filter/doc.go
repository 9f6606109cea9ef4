/*
Package filter evaluates the condition language used to select records from a
collection inside COUNT and AVERAGE formulas.

# Overview

A filter is a short string evaluated against one record (a map of field name
to value). It is parsed on its own, independently of the formula tokenizer,
and never returns an error: anything that does not match the grammar simply
evaluates to false for that record.

# Syntax

	<filter>  := <clause> (' AND ' <clause>)*
	           | <clause> (' OR ' <clause>)*
	<clause>  := <field> 'IS NULL'
	           | <field> 'IS NOT NULL'
	           | <field> <op> <literal>
	<op>      := '=' | '!=' | '<>' | '<=' | '>=' | '<' | '>'
	<literal> := 'text' | "text" | true | false | number | bare text

Keywords are case-insensitive. There are no parentheses.

# Grouping

The filter is split on AND first. When that produces more than one part,
every part must hold, and each part is then evaluated on its own (where it
may split on OR). OR splitting is only reached when the string contains no
AND at all. So

	a = 1 AND b = 2 OR c = 3

means a = 1 and (b = 2 or c = 3), not the conventional (a = 1 and b = 2) or
c = 3. Existing metric formulas depend on this grouping.

# Comparison

Equality is strict: 'prenha' equals only the text prenha, 5 equals only the
number 5. Ordering operators compare text lexicographically when both sides
are text and numerically otherwise. A field missing from the record never
satisfies = or an ordering operator, and always satisfies != and <>.

# Examples

	reproductive_status = 'prenha'
	del > 150 AND parity = 'multipara'
	category = 'vaca' OR category = 'novilha'
	last_calving_date IS NOT NULL
*/
package filter
