// Package stepc compiles and links step-language workspaces.
//
// Test files (`.as`) declare one feature made of scenarios whose steps start
// with Given, When, Then or And:
//
//	Feature: Checkout
//	  Paying for a basket.
//	  Scenario: Card payment
//	    Given a basket with 3 items
//	    When I pay by card
//	    Then the order is confirmed
//
// Interaction files (`.asi`) define steps. `{name}` introduces an argument and
// indented lines that follow form the description:
//
//	Step: Given a basket with {count} items
//	  Fills the basket with generated products.
//
// Linking binds every test step to the single definition whose keyword and
// pattern match it.
package stepc
