package state

// Poké Ball outline
var pokeBallSVG = []byte(`<svg viewBox="0 0 240 240" xmlns="http://www.w3.org/2000/svg">
  <circle cx="120" cy="120" r="100" fill="none" stroke="black" stroke-width="6"/>
  <path d="M20 120 H85 M155 120 H220" stroke="black" stroke-width="6"/>
  <circle cx="120" cy="120" r="35" fill="none" stroke="black" stroke-width="6"/>
  <circle cx="120" cy="120" r="15" fill="none" stroke="black" stroke-width="4"/>
</svg>`)
