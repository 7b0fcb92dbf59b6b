package scraper

// Scripts evaluated in the page. Each takes a single argument.

const clickButtonsByTextScript = `texts => {
  const wanted = texts.map(t => t.trim().toLowerCase());
  let clicked = 0;
  for (const el of document.querySelectorAll('button, [role="button"]')) {
    const label = (el.innerText || el.textContent || '').trim().toLowerCase();
    if (label && wanted.includes(label)) {
      try { el.click(); clicked++; } catch (e) {}
    }
  }
  return clicked;
}`

const clickAllScript = `selectors => {
  let clicked = 0;
  for (const sel of selectors) {
    let nodes = [];
    try { nodes = document.querySelectorAll(sel); } catch (e) { continue; }
    nodes.forEach(el => { try { el.click(); clicked++; } catch (e) {} });
  }
  return clicked;
}`

const forceFillScript = `({ selectors, value }) => {
  for (const sel of selectors) {
    let el = null;
    try { el = document.querySelector(sel); } catch (e) { continue; }
    if (!el) continue;
    el.focus();
    const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
    const desc = Object.getOwnPropertyDescriptor(proto, 'value');
    if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
    el.dispatchEvent(new Event('input', { bubbles: true }));
    el.dispatchEvent(new Event('change', { bubbles: true }));
    return true;
  }
  return false;
}`

const leafTextScript = `marker => {
  const skip = ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE'];
  for (const el of document.querySelectorAll('body *')) {
    if (skip.includes(el.tagName)) continue;
    if (el.childNodes.length === 1 && el.firstChild.nodeType === Node.TEXT_NODE) {
      const text = el.textContent.replace(/\s+/g, ' ').trim();
      if (text.includes(marker)) return text;
    }
  }
  return '';
}`

const textNodeScript = `marker => {
  const skip = ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE'];
  const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
  let node;
  while ((node = walker.nextNode())) {
    if (node.parentElement && skip.includes(node.parentElement.tagName)) continue;
    const text = node.textContent.replace(/\s+/g, ' ').trim();
    if (text.includes(marker)) return text;
  }
  return '';
}`
