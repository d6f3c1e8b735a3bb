/*
Package compiler drives the back end.

Flattened IR (ir) ->
	liveness (live) ->
Interference graphs, general and float (graph) ->
	Chaitin coloring (regalloc) ->
Assignment: register, xmm register, stack slot or nothing ->
	code generation (back) ->
Instructions (asm) ->
	print ->
Assembly Text, GNU as Intel syntax

Functions share nothing, so CompileProgram may compile them in parallel.
*/
package compiler
